package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/lms-backend/internal/config"
	"github.com/stemsi/lms-backend/internal/database"
	"github.com/stemsi/lms-backend/internal/logger"
	"github.com/stemsi/lms-backend/internal/service"
)

// issue-token mints a JWT for local testing against a running instance.
// Student tokens register a single-device session in Redis, exactly as the
// identity service would; admin tokens are signed without one.
func main() {
	var (
		tokenType = flag.String("type", "student", "Token type: student or admin")
		userID    = flag.Int("user", 0, "User ID to embed in the token")
	)
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user is required and must be positive")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	authService := service.NewAuthService(cfg, rdb)

	var token string
	switch *tokenType {
	case "student":
		token, err = authService.GenerateStudentToken(ctx, *userID)
	case "admin":
		token, err = authService.GenerateAdminToken(*userID)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", *tokenType)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token")
	}

	fmt.Println(token)
}
