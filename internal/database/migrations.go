package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/docmill/docmill/internal/logging"
)

// RunMigrations runs any pending database migrations using gormigrate
func RunMigrations(logPrefix string) error {
	logging.Logf("[%s] Running database migrations...", logPrefix)

	m := gormigrate.New(DB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601120001_add_task_error_columns",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ConversionTask{})
			},
			Rollback: func(tx *gorm.DB) error {
				if tx.Migrator().HasColumn(&ConversionTask{}, "error_kind") {
					if err := tx.Migrator().DropColumn(&ConversionTask{}, "error_kind"); err != nil {
						return err
					}
				}
				if tx.Migrator().HasColumn(&ConversionTask{}, "error_message") {
					return tx.Migrator().DropColumn(&ConversionTask{}, "error_message")
				}
				return nil
			},
		},
	})

	// Fresh databases get the current schema directly.
	m.InitSchema(func(tx *gorm.DB) error {
		for _, model := range GetAllModels() {
			if err := tx.AutoMigrate(model); err != nil {
				return fmt.Errorf("failed to migrate %T: %w", model, err)
			}
		}
		return nil
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Logf("[%s] Migrations completed successfully", logPrefix)
	return nil
}
