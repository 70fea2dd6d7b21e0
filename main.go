package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️ Warning: .env file not found, using system environment variables")
	}
}

func main() {

	// Load .env variables
	LoadEnv()

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("❌ JWT_SECRET is missing in .env")
	}

	// Connect DB
	InitDB()

	// Start Gin
	r := gin.Default()

	// CORS
	r.Use(CORSMiddleware())

	// Routes
	SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server running on http://localhost:%s", port)
	r.Run(":" + port)
}
