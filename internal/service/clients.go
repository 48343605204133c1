package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the identity collaborator's view of an account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Question is the question-bank collaborator's view of a problem. Code seeds
// the session's starter text.
type Question struct {
	ID          string `json:"QID"`
	StarterCode string `json:"code"`
}

// UserClient looks up accounts in the external identity service.
// A missing user returns (nil, nil).
type UserClient interface {
	FetchUser(ctx context.Context, userID string) (*User, error)
}

// QuestionClient looks up problems in the external question bank.
// A missing question returns (nil, nil).
type QuestionClient interface {
	FetchQuestion(ctx context.Context, questionID string) (*Question, error)
}

// TokenVerifier authenticates both HTTP requests and socket handshakes
// against the external identity service. An invalid token returns (nil, nil).
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}

// HTTPUserClient talks to the identity service over its REST contract.
type HTTPUserClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPUserClient(baseURL string) *HTTPUserClient {
	return &HTTPUserClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPUserClient) FetchUser(ctx context.Context, userID string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user lookup returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	return &user, nil
}

type verifyResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *HTTPUserClient) VerifyToken(ctx context.Context, token string) (*User, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	defer resp.Body.Close()

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if !result.Success || result.User == nil {
		return nil, nil
	}
	return result.User, nil
}

// HTTPQuestionClient talks to the question bank over its REST contract.
type HTTPQuestionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPQuestionClient(baseURL string) *HTTPQuestionClient {
	return &HTTPQuestionClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPQuestionClient) FetchQuestion(ctx context.Context, questionID string) (*Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/questions/"+questionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("question lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question lookup returned status %d", resp.StatusCode)
	}

	var question Question
	if err := json.NewDecoder(resp.Body).Decode(&question); err != nil {
		return nil, fmt.Errorf("failed to decode question response: %w", err)
	}
	return &question, nil
}
