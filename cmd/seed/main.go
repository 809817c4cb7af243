package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/miskit/backoffice/config"
	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/pkg/helpers"
)

// Seeds the bootstrap administrator so a fresh deployment can log in.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	username := "admin"
	digest := helpers.Digest(cfg.DefaultPassword)

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (name, username, password, role, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) WHERE NOT deleted DO UPDATE SET updated_at = now()
		RETURNING id
	`, "Administrator", username, digest, entity.RoleAdministrator, entity.DefaultAvatar).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded administrator: id=%d username=%s password=%s\n", id, username, cfg.DefaultPassword)
}
