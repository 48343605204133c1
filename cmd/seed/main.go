// Seeds a demo session for local development so the frontend has something
// to connect to without the matchmaking service running.
package main

import (
	"codepair/internal/model"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	database := os.Getenv("MONGO_DATABASE")
	if database == "" {
		database = "codepair"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	sessions := client.Database(database).Collection("sessions")

	now := time.Now()
	session := model.Session{
		ID:         primitive.NewObjectID().Hex(),
		RoomID:     "DEMO42",
		Language:   model.LanguagePython,
		QuestionID: "42",
		Code:       "def two_sum(nums, target):\n    pass\n",
		Version:    0,
		Status:     model.SessionActive,
		Participants: []model.Participant{
			{UserID: "user-alice", DisplayName: "alice", JoinedAt: now, LastSeenAt: now},
			{UserID: "user-bob", DisplayName: "bob", JoinedAt: now, LastSeenAt: now},
		},
		EndRequests:     []string{},
		CursorPositions: map[string]model.CursorPosition{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := sessions.InsertOne(ctx, session); err != nil {
		log.Fatalf("Failed to insert demo session: %v", err)
	}

	fmt.Printf("Seeded session %s (room %s)\n", session.ID, session.RoomID)
}
