package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
	"github.com/noorapp/noor/internal/security"
)

type output struct {
	KeyID       string   `json:"key_id"`
	Key         string   `json:"key"`
	KeyPrefix   string   `json:"key_prefix"`
	Scopes      []string `json:"scopes"`
	PasscodeSet bool     `json:"passcode_set"`
}

func main() {
	_ = godotenv.Load()

	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		name        = flag.String("name", "scheduler", "Service key name")
		scopesInput = flag.String("scopes", "dispatch,publish,push", "Comma-separated scopes (dispatch,publish,push,admin)")
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		adminEmail  = flag.String("admin-email", envOr("ADMIN_EMAIL", "admin@noor.app"), "Admin email for the security config")
		passcode    = flag.String("admin-passcode", os.Getenv("ADMIN_PASSCODE"), "Initial admin passcode (optional)")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
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

	generated, err := auth.GenerateServiceKey(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate service key:", err)
		os.Exit(1)
	}

	key := &model.ServiceKey{
		ID:        ulid.Make().String(),
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		Name:      *name,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateServiceKey(ctx, key); err != nil {
		fmt.Fprintln(os.Stderr, "create service key:", err)
		os.Exit(1)
	}

	out := output{
		KeyID:     key.ID,
		Key:       generated.Plaintext,
		KeyPrefix: key.KeyPrefix,
		Scopes:    scopes,
	}

	if *passcode != "" {
		// Sessions and tokens are unused when only setting the passcode.
		svc := security.NewService(repo, nil, nil, security.Options{AdminEmail: *adminEmail},
			slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewNoop())
		if err := svc.Bootstrap(ctx, *passcode); err != nil {
			fmt.Fprintln(os.Stderr, "set admin passcode:", err)
			os.Exit(1)
		}
		out.PasscodeSet = true
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseScopes(input string) ([]string, error) {
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !isValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return scopes, nil
}

func isValidScope(scope string) bool {
	for _, allowed := range model.ValidScopes {
		if scope == allowed {
			return true
		}
	}
	return false
}
