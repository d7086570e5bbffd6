package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mahdibari/mosi-project-sub000/internal/modules/orders"
	"github.com/mahdibari/mosi-project-sub000/internal/modules/payments"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&orders.Order{},
		&orders.OrderItem{},
		&payments.CallbackEvent{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Tables created.")
}
