package logwatch

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenJournal opens (or creates) the forwarder's delivery journal.
func OpenJournal(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ForwardedBatch{}, &ForwardedMessage{}); err != nil {
		return nil, err
	}
	return db, nil
}
