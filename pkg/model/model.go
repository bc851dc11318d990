package model

import (
	"time"
)

// Profile describes an academic speaker persona. Owned by the domain
// layer; this core only reads it.
type Profile struct {
	ID         string `json:"id"` // Stable identifier, may be empty for ad-hoc profiles
	Name       string `json:"name"`
	Background string `json:"background"` // Free-text biography
	Department string `json:"department"` // Free-text domain tag, e.g. "Physics"

	// Optional explicit attributes. Empty string / zero means "not set".
	Gender string `json:"gender,omitempty"`
	Accent string `json:"accent,omitempty"`
	Age    int    `json:"age,omitempty"`
}

// Lecture is the unit of narration. Only Content is read by this core.
type Lecture struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// VoiceRecord is a catalog entry enriched with a derived quality score.
type VoiceRecord struct {
	VoiceID     string `json:"voice_id"` // Primary Key
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Accent      string `json:"accent"`
	Age         string `json:"age"`      // Bucket: young, middle_aged, old
	Category    string `json:"category"` // professional, high_quality, famous, generated
	Language    string `json:"language"`
	UseCase     string `json:"use_case"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`

	// Usage signals from the catalog.
	ClonedByCount  int64 `json:"cloned_by_count"`
	UsageCharCount int64 `json:"usage_char_count"`

	// QualityScore is computed once at ingestion from category and
	// usage signals. Range [0,1]. Immutable until the record is
	// re-fetched from the catalog.
	QualityScore float64 `json:"quality_score"`

	FetchedAt time.Time `json:"fetched_at"`
}

// SynthesisSettings are passed through to the synthesis engine.
type SynthesisSettings struct {
	Stability       float64 `json:"stability" yaml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" yaml:"similarity_boost"`
	Style           float64 `json:"style" yaml:"style"`
}
