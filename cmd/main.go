package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sachin80-coder/fixfinder-server/cmd/api"
	"github.com/Sachin80-coder/fixfinder-server/cmd/models"
	"github.com/Sachin80-coder/fixfinder-server/cmd/utils"
	"github.com/Sachin80-coder/fixfinder-server/db"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func migrationModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PasswordResetToken{},
		&models.ServiceCategory{},
		&models.Service{},
		&models.ServiceImage{},
		&models.ServiceRequest{},
		&models.ServiceResponse{},
		&models.Booking{},
		&models.Review{},
		&models.Notification{},
		&models.EmailOutbox{},
		&models.ContactMessage{},
	}
}

func performMigrations(DB *gorm.DB) error {
	log.Println("Starting database migrations...")
	for _, model := range migrationModels() {
		log.Printf("Migrating %T...", model)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %T: %w", model, err)
		}
	}

	if err := createDirectoryIfNotExist(utils.ImagePath); err != nil {
		return err
	}
	log.Printf("Directory %s created/verified", utils.ImagePath)

	log.Println("All migrations and directory setup completed successfully")
	return nil
}

func createDirectoryIfNotExist(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", path, err)
		}
	}
	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
	server.Shutdown()
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	log.Println("Dropping tables...")

	// Reverse dependency order so foreign keys never block a drop.
	tables := migrationModels()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := DB.Migrator().DropTable(tables[i]); err != nil {
			log.Printf("Warning dropping table %T: %v", tables[i], err)
		} else {
			log.Printf("Table %T dropped", tables[i])
		}
	}

	if err := DB.Migrator().DropTable("user_service_categories"); err != nil {
		log.Printf("Warning dropping join table: %v", err)
	}

	log.Println("Database cleared successfully")
}
