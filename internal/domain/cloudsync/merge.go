package cloudsync

import (
	"maps"

	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
)

// Merge folds delta on top of base and returns a new batch. Neither input
// is modified.
//
//   - projects: keyed by local id, remote id, then name; the later entry replaces
//   - chatMessages: keyed by project; message arrays are appended
//   - preferences: shallow field overwrite
//   - archetypes: keyed by archetype id; the later entry replaces
func Merge(base, delta BatchSyncInput) BatchSyncInput {
	out := BatchSyncInput{}

	out.Projects = append([]ProjectPayload(nil), base.Projects...)
	for _, p := range delta.Projects {
		replaced := false
		for i := range out.Projects {
			if projectKey(out.Projects[i]) != projectKey(p) {
				continue
			}
			if p.ID == "" {
				p.ID = out.Projects[i].ID
			}
			out.Projects[i] = p
			replaced = true
			break
		}
		if !replaced {
			out.Projects = append(out.Projects, p)
		}
	}

	for _, c := range base.ChatMessages {
		c.Messages = cloneMessages(c.Messages)
		out.ChatMessages = append(out.ChatMessages, c)
	}
	for _, c := range delta.ChatMessages {
		merged := false
		for i := range out.ChatMessages {
			if chatKey(out.ChatMessages[i]) != chatKey(c) {
				continue
			}
			existing := &out.ChatMessages[i]
			existing.Messages = append(existing.Messages, c.Messages...)
			if c.ProjectID != "" {
				existing.ProjectID = c.ProjectID
			}
			merged = true
			break
		}
		if !merged {
			c.Messages = cloneMessages(c.Messages)
			out.ChatMessages = append(out.ChatMessages, c)
		}
	}

	if len(base.Preferences) > 0 || len(delta.Preferences) > 0 {
		out.Preferences = settings.Preferences{}
		maps.Copy(out.Preferences, base.Preferences)
		maps.Copy(out.Preferences, delta.Preferences)
	}

	out.Archetypes = append([]settings.Archetype(nil), base.Archetypes...)
	for _, a := range delta.Archetypes {
		replaced := false
		for i := range out.Archetypes {
			if out.Archetypes[i].ArchetypeID == a.ArchetypeID {
				out.Archetypes[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			out.Archetypes = append(out.Archetypes, a)
		}
	}

	if len(out.Projects) == 0 {
		out.Projects = nil
	}
	if len(out.Archetypes) == 0 {
		out.Archetypes = nil
	}
	return out
}

func projectKey(p ProjectPayload) string {
	switch {
	case p.ClientID != "":
		return "local:" + p.ClientID
	case p.ID != "":
		return "remote:" + p.ID
	default:
		return "name:" + p.Name
	}
}

func chatKey(c ChatBatch) string {
	if c.LocalProjectID != "" {
		return "local:" + c.LocalProjectID
	}
	return "remote:" + c.ProjectID
}

func cloneMessages(msgs []project.ChatMessage) []project.ChatMessage {
	return append([]project.ChatMessage(nil), msgs...)
}
