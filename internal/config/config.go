package config

import "os"

type Config struct {
	MongoURI           string
	MongoDatabase      string
	RedisAddr          string
	Port               string
	UserServiceURL     string
	QuestionServiceURL string
}

func Load() *Config {
	return &Config{
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "codepair"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		Port:               getEnv("PORT", "8080"),
		UserServiceURL:     getEnv("USER_SERVICE_URL", "http://localhost:3001/api"),
		QuestionServiceURL: getEnv("QUESTION_SERVICE_URL", "http://localhost:3002/api"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
