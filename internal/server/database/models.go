package database

import (
	"time"

	"dirplan/internal/core"
)

// TemplateRecord is one saved template row.
type TemplateRecord struct {
	Name        string
	Structure   core.Tree
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats holds aggregate template statistics.
type Stats struct {
	TotalTemplates     int64
	DistinctStructures int64
	LastUpdated        *time.Time
}
