// Package convo defines conversation transcripts and their durable store.
package convo

import "time"

// Role tags the author of a transcript turn.
type Role string

const (
	// RoleSystem marks turns injected by the bot itself.
	RoleSystem Role = "system"
	// RoleUser marks turns typed by the chat participant.
	RoleUser Role = "user"
	// RoleAssistant marks turns produced by the language model.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a transcript. Turns are immutable once
// appended; the transcript is never edited or truncated.
type Turn struct {
	Role    Role   `json:"role" db:"role"`
	Content string `json:"content" db:"content"`
}

// Transcript is the ordered sequence of turns for one chat. Insertion order
// is significant: it is replayed to the language model and stored verbatim.
type Transcript []Turn

// Append returns the transcript extended with a new turn.
func (t Transcript) Append(role Role, content string) Transcript {
	return append(t, Turn{Role: role, Content: content})
}

// CountRole returns how many turns carry the given role.
func (t Transcript) CountRole(role Role) int {
	n := 0
	for _, turn := range t {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no backing storage with the original.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Record is the persisted shape of a conversation. At most one record exists
// per chat; saves are keyed upserts.
type Record struct {
	ChatID     int64      `db:"chat_id"`
	Transcript Transcript `db:"transcript"`
	UpdatedAt  time.Time  `db:"updated_at"`
}
