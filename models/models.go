package models

import (
	"time"

	"gorm.io/datatypes"
)

// Rule is a named pattern kept in the rule store.
type Rule struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	Name        string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Language    string         `gorm:"type:varchar(50)"`
	Pattern     string         `gorm:"type:text;not null"`
	Description string         `gorm:"type:text"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

// Run is one journaled query run
type Run struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Pattern   string `gorm:"type:text;not null"`
	Language  string `gorm:"type:varchar(50)"`
	Mode      string `gorm:"type:varchar(10)"` // search, rewrite
	Optimizer string `gorm:"type:text"`

	// Counters
	FileCount int `gorm:"default:0"`
	Searched  int `gorm:"default:0"`
	Matches   int `gorm:"default:0"`
	Rewritten int `gorm:"default:0"`
	Failed    int `gorm:"default:0"`
	Canceled  int `gorm:"default:0"`
	Conflicts int `gorm:"default:0"`
	Reads     int64
	Parses    int64

	Stats      datatypes.JSON `gorm:"type:jsonb"` // full stats object
	StartedAt  time.Time      `gorm:"index"`
	DurationMS int64
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	// Relationships
	RunFiles []RunFile `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// RunFile is the outcome of one file in a run
type RunFile struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"type:varchar(36);index;not null"`
	Seq       int    // enumeration position
	Path      string `gorm:"type:text;not null"`
	Status    string `gorm:"type:varchar(20)"` // skipped, no_match, matched, rewritten, failed
	Matches   int    `gorm:"default:0"`
	ErrorCode string `gorm:"type:varchar(20)"`
	Error     string `gorm:"type:text"`
	Digest    string `gorm:"type:varchar(64)"` // SHA256 of the content read
}

// TableName customizations for cleaner names
func (Rule) TableName() string    { return "rules" }
func (Run) TableName() string     { return "runs" }
func (RunFile) TableName() string { return "run_files" }
