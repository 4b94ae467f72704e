package repository

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fathima-sithara/marketchat/internal/models"
)

// Open connects to the relational store and migrates the chat schema.
// The (listing_id, buyer_id, seller_id) uniqueness constraint created by
// the migration is what makes concurrent first-contact room creation safe.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Room{}, &models.Message{}); err != nil {
		return nil, err
	}
	return db, nil
}
