package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/models"
)

// migrate applies the schema and test users, and can add extra supervisor accounts:
//
//	go run ./cmd/migrate -supervisor ops@example.com -name "Night Desk" -password s3cret!!
func main() {
	email := flag.String("supervisor", "", "email of a supervisor account to create")
	name := flag.String("name", "Supervisor", "display name for -supervisor")
	password := flag.String("password", "", "password for -supervisor (min 8 chars)")
	skipSeed := flag.Bool("skip-seed", false, "do not create the test driver and supervisor")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if !*skipSeed {
		if err := database.SeedUsers(db); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	if *email != "" {
		if len(*password) < 8 {
			log.Fatal("-password must be at least 8 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		now := time.Now().Unix()
		user := &models.User{
			ID:        uuid.New().String(),
			Email:     *email,
			Password:  string(hashed),
			Name:      *name,
			Role:      models.RoleSupervisor,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := database.InsertUser(db, user); err != nil {
			log.Fatalf("Failed to create supervisor %s: %v", *email, err)
		}
		log.Printf("✅ Created supervisor: %s", *email)
	}

	var counts struct {
		Users    int `db:"users"`
		Sessions int `db:"sessions"`
		Tasks    int `db:"tasks"`
		Events   int `db:"events"`
	}
	err = db.Get(&counts, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM attendance_sessions) AS sessions,
			(SELECT COUNT(*) FROM transport_tasks) AS tasks,
			(SELECT COUNT(*) FROM domain_events) AS events
	`)
	if err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Users:                   %d\n", counts.Users)
	fmt.Printf("Attendance sessions:     %d\n", counts.Sessions)
	fmt.Printf("Transport tasks:         %d\n", counts.Tasks)
	fmt.Printf("Domain events:           %d\n", counts.Events)
	fmt.Println("============================================================")
}
