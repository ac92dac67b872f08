package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transcription is immutable once written. UserID is nil only for guest
// results, which are never persisted.
type Transcription struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    *uint          `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Filename  string         `gorm:"column:filename;type:varchar(200);not null" json:"filename"`
	Text      string         `gorm:"column:text;type:text;not null" json:"text"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (Transcription) TableName() string { return "transcriptions" }

// TranscriptionMetadata is stored in Transcription.Metadata.
type TranscriptionMetadata struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Language     string  `json:"language,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	OriginalName string  `json:"original_name"`
	SizeBytes    int64   `json:"size_bytes"`
	Blake3       string  `json:"blake3"`
	DurationMS   int64   `json:"duration_ms"`
}
