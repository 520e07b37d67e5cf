package db

import (
	"log"

	"github.com/supportdesk/platform/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Profile{},
		&models.User{},
		&models.ActiveSession{},
		&models.Category{},
		&models.Subcategory{},
		&models.Keyword{},
		&models.Document{},
		&models.ChatSession{},
		&models.Consultation{},
		&models.Response{},
		&models.Feedback{},
		&models.PendingTopic{},
		&models.IngestJob{},
	)
}
