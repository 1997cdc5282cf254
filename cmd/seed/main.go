package main

import (
	"context"
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/config"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
	"github.com/oksasatya/go-expense-split/internal/domain/repository"
	pginfra "github.com/oksasatya/go-expense-split/internal/infrastructure/postgres"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/memory"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	for _, name := range memory.DefaultCategories {
		if _, err := pool.Exec(ctx, `INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			log.Fatalf("failed to upsert category %s: %v", name, err)
		}
	}
	logger.WithField("count", len(memory.DefaultCategories)).Info("categories ensured")

	const (
		username = "demo"
		email    = "demo@example.com"
		password = "password123"
	)
	users := pginfra.NewUserRepository(pool)
	if u, err := users.GetByEmail(ctx, email); err == nil {
		logger.WithField("user_id", u.ID).Info("demo user already present")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Fatalf("failed to look up demo user: %v", err)
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	u := &entity.User{
		Username:             username,
		Email:                email,
		PasswordHash:         hash,
		College:              "Demo College",
		Semester:             1,
		DefaultPaymentMethod: "Cash",
		IsVerified:           true,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	logger.WithFields(logrus.Fields{"user_id": u.ID, "email": email, "password": password}).Info("seeded verified demo user")
}
