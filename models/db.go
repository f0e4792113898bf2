package models

import "gorm.io/gorm"

// Migrate creates or updates every table the console owns
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Actor{},
		&Persona{},
		&Trap{},
		&Tunnel{},
		&LogEntry{},
		&AttackSession{},
		&Frame{},
		&Watermark{},
		&CommandJob{},
	)
}

// SeedTraps inserts the built-in trap catalog when the table is empty
func SeedTraps(db *gorm.DB) (int, error) {
	var count int64
	if err := db.Model(&Trap{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	traps := SeedDefaultTraps()
	if err := db.Create(&traps).Error; err != nil {
		return 0, err
	}
	return len(traps), nil
}
