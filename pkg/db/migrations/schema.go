package migrations

import (
	"gorm.io/gorm"

	"github.com/mwantia/illustag/pkg/db/models"
)

// schema lists every version in ascending order. Released versions are never edited.
func schema() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "checksums, taxonomy, images and estimations",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.Namespace{},
					&models.Tag{},
					&models.Checksum{},
					&models.Image{},
					&models.Estimation{},
				)
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(
					&models.Estimation{},
					&models.Image{},
					&models.Checksum{},
					&models.Tag{},
					&models.Namespace{},
				)
			},
		},
		{
			Version:     2,
			Description: "confirmed and rejected tag sets",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.ConfirmedTag{}, &models.RejectedTag{})
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(&models.RejectedTag{}, &models.ConfirmedTag{})
			},
		},
	}
}
