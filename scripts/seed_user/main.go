// Seeds a staff account. There is no account self-service in the API, so
// administrators create logins with this tool:
//
//	go run ./scripts/seed_user -email teacher@school.kr -password secret -name "Kim Minji"
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/pkg/config"
	"github.com/saessak-edu/saessak-api/pkg/database"
)

func main() {
	var (
		email    string
		password string
		fullName string
		role     string
	)

	flag.StringVar(&email, "email", "", "login email (required)")
	flag.StringVar(&password, "password", "", "initial password (required)")
	flag.StringVar(&fullName, "name", "", "display name (required)")
	flag.StringVar(&role, "role", string(models.RoleTeacher), "role: TEACHER or ADMIN")
	flag.Parse()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || strings.TrimSpace(fullName) == "" {
		log.Fatal("email, password and name are required")
	}
	userRole := models.UserRole(strings.ToUpper(role))
	if userRole != models.RoleTeacher && userRole != models.RoleAdmin {
		log.Fatalf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    full_name = EXCLUDED.full_name,
		    role = EXCLUDED.role,
		    active = TRUE,
		    updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), email, string(hash), strings.TrimSpace(fullName), userRole, now)
	if err != nil {
		log.Fatalf("failed to upsert user: %v", err)
	}

	log.Printf("seeded %s user %s", userRole, email)
}
