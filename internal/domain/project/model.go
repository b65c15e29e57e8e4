package project

import "time"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Action is an operation a business object supports.
type Action struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Object is an entity in the business model.
type Object struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
}

// Link relates two objects.
type Link struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind,omitempty"`
}

// Integration is an external system the project connects to.
type Integration struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// AIRequirement describes an AI capability attached to the model.
type AIRequirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	ObjectID    string `json:"objectId,omitempty"`
}

// Record is the full state of one project.
type Record struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Industry       string          `json:"industry,omitempty"`
	UseCase        string          `json:"useCase,omitempty"`
	Status         Status          `json:"status"`
	Objects        []Object        `json:"objects"`
	Links          []Link          `json:"links"`
	Integrations   []Integration   `json:"integrations"`
	AIRequirements []AIRequirement `json:"aiRequirements"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ListItem is the index entry shown in project lists.
type ListItem struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Industry       string    `json:"industry,omitempty"`
	UseCase        string    `json:"useCase,omitempty"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	CloudProjectID string    `json:"cloudProjectId,omitempty"`
	Legacy         bool      `json:"legacy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Envelope is the stored form of a project's state.
type Envelope struct {
	State          *Record   `json:"state"`
	UpdatedAt      time.Time `json:"updatedAt"`
	CloudProjectID string    `json:"cloudProjectId,omitempty"`
}

// ChatMessage is one entry of a project's assistant conversation.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CreateRequest defines project creation inputs.
type CreateRequest struct {
	Name     string
	Industry string
	UseCase  string
}

// MetadataUpdate changes descriptive fields; nil fields are left alone.
type MetadataUpdate struct {
	Name     *string
	Industry *string
	UseCase  *string
	Status   *Status
}

// SaveOptions controls how SaveState stamps and propagates a record.
type SaveOptions struct {
	// SuppressSync skips the sync queue. Conflict-resolution writebacks set it.
	SuppressSync bool
	// UpdatedAt keeps an authoritative timestamp instead of stamping now.
	UpdatedAt time.Time
	// Legacy marks the index entry as produced by the legacy migration.
	Legacy bool
}
