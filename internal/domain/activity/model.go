package activity

import "time"

// Type represents the kind of sync event
type Type string

const (
	TypePushed            Type = "pushed"
	TypePushFailed        Type = "push_failed"
	TypePulled            Type = "pulled"
	TypeRemoteWon         Type = "conflict_remote_won"
	TypeLocalKept         Type = "conflict_local_kept"
	TypeOwnershipRejected Type = "ownership_rejected"
	TypeMigrated          Type = "migrated"
	TypeMigrationFailed   Type = "migration_failed"
	TypeQuotaExceeded     Type = "quota_exceeded"
)

// Entry represents an event in the sync activity log
type Entry struct {
	ID        int64     `json:"id"`
	ScopeKey  string    `json:"scope"`
	ProjectID string    `json:"project_id,omitempty"`
	Type      Type      `json:"type"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details,omitempty"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}
