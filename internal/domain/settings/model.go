package settings

import "time"

// Preferences is a flat bag of user preferences. Updates overwrite per field.
type Preferences map[string]any

// Archetype is a reusable project template record.
type Archetype struct {
	ArchetypeID string         `json:"archetypeId"`
	Name        string         `json:"name"`
	Industry    string         `json:"industry,omitempty"`
	Definition  map[string]any `json:"definition,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
