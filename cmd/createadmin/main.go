// Command createadmin creates the operator account from the
// STUDENTS_ADMIN_USERNAME, STUDENTS_ADMIN_EMAIL and STUDENTS_ADMIN_PASSWORD
// environment variables. It does nothing when the password is unset or
// the account already exists. Only the database settings are needed;
// SESSION_SECRET may be left unset.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"student-records/internal/app"
	"student-records/internal/auth"
	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/logger"
	"student-records/internal/metrics"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewWithServiceContext(app.ServiceName+"-createadmin", app.Version, os.Getenv("ENV"))

	if err := run(context.Background(), log); err != nil {
		log.Error("createadmin failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	username := envOr("STUDENTS_ADMIN_USERNAME", "admin")
	email := envOr("STUDENTS_ADMIN_EMAIL", "admin@example.com")
	password := os.Getenv("STUDENTS_ADMIN_PASSWORD")

	if password == "" {
		log.Info("STUDENTS_ADMIN_PASSWORD not set, skipping admin creation")
		return nil
	}

	cfg, err := config.Read()
	if err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := db.RunMigrations(ctx, database, auth.Indexes(), auth.Models()...); err != nil {
		return err
	}

	m := metrics.NewMock()
	service := auth.NewService(auth.NewRepository(database, m), cfg.Auth, log, m)

	if _, err := service.CreateUser(ctx, username, email, password); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			log.Info("admin user already exists", "username", username)
			return nil
		}
		return err
	}

	log.Info("admin user created", "username", username)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
