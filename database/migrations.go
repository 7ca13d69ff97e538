package database

import (
	"inkwell/common"
	"inkwell/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	common.Log.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.ProfileFollower{},
		&models.Post{},
		&models.PostTag{},
		&models.PostLike{},
		&models.Comment{},
	)

	if err != nil {
		common.Log.WithError(err).Error("Error running migrations")
		return err
	}

	common.Log.Info("Migrations completed successfully")
	return nil
}
