// Command bootstrap-session seeds a user and a login session for local
// development and smoke testing. It prints the plaintext session token,
// which is never recoverable afterwards.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/corates/corates/internal/auth"
	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

type output struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	SessionID   string `json:"session_id"`
	Token       string `json:"token"`
	TokenPrefix string `json:"token_prefix"`
	ExpiresAt   string `json:"expires_at"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		userID      = flag.String("user-id", "", "User ID to log in (generated if empty)")
		email       = flag.String("email", "dev@corates.local", "User email")
		ttl         = flag.Duration("ttl", 30*24*time.Hour, "Session lifetime")
		env         = flag.String("env", auth.EnvTest, "Token environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	id := *userID
	if id == "" {
		id = ulid.Make().String()
	}

	if err := ensureUser(ctx, repo, id, *email); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	generated, err := auth.GenerateSessionToken(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate session token:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:          ulid.Make().String(),
		UserID:      id,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		ExpiresAt:   now.Add(*ttl),
		CreatedAt:   now,
	}

	if err := repo.CreateSession(ctx, session); err != nil {
		fmt.Fprintln(os.Stderr, "create session:", err)
		os.Exit(1)
	}

	out := output{
		UserID:      id,
		Email:       *email,
		SessionID:   session.ID,
		Token:       generated.Plaintext,
		TokenPrefix: generated.Prefix,
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func ensureUser(ctx context.Context, repo *repository.Repository, userID, email string) error {
	existing, err := repo.GetUserByID(ctx, userID)
	if err == nil {
		if existing.Email != email {
			return fmt.Errorf("user %s exists with different email: %s", userID, existing.Email)
		}
		return nil
	}

	byEmail, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if byEmail.ID != userID {
			return fmt.Errorf("email %s already used by user %s", email, byEmail.ID)
		}
		return nil
	}

	user := &model.User{
		ID:        userID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
