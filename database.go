package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	godotenv.Load()

	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASS")
	name := os.Getenv("DB_NAME")
	port := os.Getenv("DB_PORT")

	if host == "" || user == "" || pass == "" || name == "" || port == "" {
		log.Fatalf("DATABASE ENV MISSING — check .env file")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, pass, name, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}

	DB = db

	if err := MigrateModels(DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	fmt.Println("✅ Database connected and migrated successfully")
}

// MigrateModels creates/updates every table, including the composite unique
// indexes the ledger relies on.
func MigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Event{},
		&Registration{},
		&Notification{},
		&Announcement{},
		&QuranCircle{},
		&CircleMember{},
		&CircleSession{},
		&SessionAttendance{},
		&CircleFile{},
		&SessionFile{},
		&AIQuestion{},
		&QuranVerse{},
		&PasswordResetToken{},
	)
}
