package cloudsync_test

import (
	"testing"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/stretchr/testify/require"
)

func TestMerge_ProjectsReplacedByLocalID(t *testing.T) {
	base := cloudsync.BatchSyncInput{Projects: []cloudsync.ProjectPayload{
		{ID: "c1", ClientID: "p1", Name: "A"},
		{ClientID: "p2", Name: "Other"},
	}}
	delta := cloudsync.BatchSyncInput{Projects: []cloudsync.ProjectPayload{
		{ClientID: "p1", Name: "B"},
	}}

	out := cloudsync.Merge(base, delta)
	require.Len(t, out.Projects, 2)
	require.Equal(t, "B", out.Projects[0].Name)
	require.Equal(t, "c1", out.Projects[0].ID, "remote id carried over")
	require.Equal(t, "A", base.Projects[0].Name, "inputs untouched")
}

func TestMerge_ProjectsWithoutLocalID(t *testing.T) {
	base := cloudsync.BatchSyncInput{Projects: []cloudsync.ProjectPayload{
		{ID: "c1", Name: "A"},
		{Name: "Draft"},
	}}
	delta := cloudsync.BatchSyncInput{Projects: []cloudsync.ProjectPayload{
		{ID: "c1", Name: "A2"},
		{Name: "Draft", Industry: "retail"},
	}}

	out := cloudsync.Merge(base, delta)
	require.Len(t, out.Projects, 2)
	require.Equal(t, "A2", out.Projects[0].Name)
	require.Equal(t, "retail", out.Projects[1].Industry)
}

func TestMerge_ChatAppended(t *testing.T) {
	base := cloudsync.BatchSyncInput{ChatMessages: []cloudsync.ChatBatch{
		{LocalProjectID: "p1", Messages: []project.ChatMessage{{Role: "user", Content: "one"}}},
	}}
	delta := cloudsync.BatchSyncInput{ChatMessages: []cloudsync.ChatBatch{
		{LocalProjectID: "p1", ProjectID: "c1", Messages: []project.ChatMessage{{Role: "assistant", Content: "two"}}},
		{ProjectID: "c2", Messages: []project.ChatMessage{{Role: "user", Content: "elsewhere"}}},
	}}

	out := cloudsync.Merge(base, delta)
	require.Len(t, out.ChatMessages, 2)
	require.Equal(t, "c1", out.ChatMessages[0].ProjectID)
	require.Len(t, out.ChatMessages[0].Messages, 2)
	require.Equal(t, "one", out.ChatMessages[0].Messages[0].Content)
	require.Equal(t, "two", out.ChatMessages[0].Messages[1].Content)
	require.Len(t, base.ChatMessages[0].Messages, 1)
}

func TestMerge_PreferencesAndArchetypes(t *testing.T) {
	base := cloudsync.BatchSyncInput{
		Preferences: settings.Preferences{"theme": "dark", "lang": "en"},
		Archetypes:  []settings.Archetype{{ArchetypeID: "a1", Name: "Shop"}},
	}
	delta := cloudsync.BatchSyncInput{
		Preferences: settings.Preferences{"theme": "light"},
		Archetypes: []settings.Archetype{
			{ArchetypeID: "a1", Name: "Store"},
			{ArchetypeID: "a2", Name: "Clinic"},
		},
	}

	out := cloudsync.Merge(base, delta)
	require.Equal(t, settings.Preferences{"theme": "light", "lang": "en"}, out.Preferences)
	require.Equal(t, "dark", base.Preferences["theme"])
	require.Len(t, out.Archetypes, 2)
	require.Equal(t, "Store", out.Archetypes[0].Name)
}

func TestMerge_Empty(t *testing.T) {
	out := cloudsync.Merge(cloudsync.BatchSyncInput{}, cloudsync.BatchSyncInput{})
	require.True(t, out.IsEmpty())
	require.Nil(t, out.Preferences)
}
