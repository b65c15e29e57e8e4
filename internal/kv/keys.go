package kv

import "strings"

// Logical keys. Every one of these is stored under a tenant scope prefix.
const (
	ProjectIndexKey  = "projects:index"
	PendingSyncKey   = "sync:pending"
	LastSyncedKey    = "sync:last-synced-at"
	PendingLinksKey  = "sync:pending-links"
	ActiveProjectKey = "active-project"
	PreferencesKey   = "settings:preferences"
	ArchetypesKey    = "settings:archetypes"

	projectPrefix = "project:"
	stateSuffix   = ":state"
	chatSuffix    = ":chat"
)

// StateKey is the logical key of a project's state envelope.
func StateKey(projectID string) string {
	return projectPrefix + projectID + stateSuffix
}

// ChatKey is the logical key of a project's chat log.
func ChatKey(projectID string) string {
	return projectPrefix + projectID + chatSuffix
}

// IsChatKey reports whether a logical key holds a chat log.
func IsChatKey(logical string) bool {
	return strings.HasPrefix(logical, projectPrefix) && strings.HasSuffix(logical, chatSuffix)
}

// ProjectPrefix is the logical prefix shared by every per-project key.
func ProjectPrefix() string {
	return projectPrefix
}
