package logwatch

import "time"

// ForwardedBatch records one batch handed to the event console forwarder.
type ForwardedBatch struct {
	ID        uint   `gorm:"primaryKey"`
	BatchID   string `gorm:"uniqueIndex;size:64"`
	Remote    string `gorm:"index;size:128"`
	LineCount int
	AllSent   bool      `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
}

// ForwardedMessage is one classified line queued for event console
// delivery. Unsent messages are retried on later runs.
type ForwardedMessage struct {
	ID        uint   `gorm:"primaryKey"`
	BatchID   string `gorm:"index;size:64"`
	Seq       int
	Section   string `gorm:"index;size:1024"`
	Level     string `gorm:"index;size:4"`
	Text      string `gorm:"type:text"`
	Sent      bool   `gorm:"index"`
	SendError string `gorm:"type:text"`
	SentAt    *time.Time
	CreatedAt time.Time `gorm:"index"`
}
