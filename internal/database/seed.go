package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"fieldops-backend/internal/models"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	supervisorPassword, err := bcrypt.GenerateFromPassword([]byte("supervisor123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	vehicle := "VAN-014"
	users := []models.User{
		{
			ID:                uuid.New().String(),
			Email:             "driver@fieldops.dev",
			Password:          string(driverPassword),
			Name:              "Sam Driver",
			Role:              models.RoleDriver,
			AssignedVehicleID: &vehicle,
		},
		{
			ID:       uuid.New().String(),
			Email:    "supervisor@fieldops.dev",
			Password: string(supervisorPassword),
			Name:     "Site Supervisor",
			Role:     models.RoleSupervisor,
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, role, assigned_vehicle_id)
			VALUES (:id, :email, :password, :name, :role, :assigned_vehicle_id)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user.Email, user.Role)
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Driver:     driver@fieldops.dev / driver123")
	log.Println("  📧 Supervisor: supervisor@fieldops.dev / supervisor123")
	return nil
}
