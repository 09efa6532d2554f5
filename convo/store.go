package convo

import "context"

// Store persists conversation transcripts keyed by chat id.
//
// Upsert must be idempotent: calling it twice with the same chat id and
// transcript leaves exactly one record for that chat.
type Store interface {
	// Upsert creates or replaces the record for chatID.
	Upsert(ctx context.Context, chatID int64, transcript Transcript) error
	// Find returns the stored transcript for chatID, reporting presence.
	Find(ctx context.Context, chatID int64) (Transcript, bool, error)
}
