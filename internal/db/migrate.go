/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/caravelradio/maestro/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Track{},
		&models.Program{},
		&models.ScheduleSlot{},
		&models.Request{},
		&models.WeekdayDefault{},
		&models.PlayHistory{},
	)
}
