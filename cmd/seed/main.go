package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/campus-identity/config"
	"github.com/oksasatya/campus-identity/internal/domain/entity"
	pginfra "github.com/oksasatya/campus-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	cfg.DBMaxConns, cfg.DBMinConns = 2, 1

	pool, err := pginfra.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pginfra.NewIdentityRepository(pool)

	email := "demo.student@state.edu"
	password := "password123"

	if u, _, err := repo.GetByEmail(ctx, email); err == nil {
		fmt.Printf("demo student already present: id=%s email=%s\n", u.ID, u.Email)
		return
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	u := entity.NewIdentity(entity.ProfileFields{
		Email:        email,
		Name:         "Demo Student",
		Institution:  "State University",
		FieldOfStudy: "Computer Science",
		Year:         2,
		Bio:          "Seeded account for local development.",
	}, time.Now())
	if err := repo.Create(ctx, u, hash); err != nil {
		log.Fatalf("failed to seed identity: %v", err)
	}
	fmt.Printf("seeded identity: id=%s email=%s verified=%t password=%s\n", u.ID, u.Email, u.Verified, password)
}
