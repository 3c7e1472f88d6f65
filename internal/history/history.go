// Package history keeps the bounded conversation log shared by every
// frontend of the assistant.
package history

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const DefaultCapacity = 100

// Record is one stored turn.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// Store is an append-only log trimmed to its newest records.
type Store interface {
	// Append stores the user input and the reply as two records.
	Append(ctx context.Context, userInput, response string) error
	// Recent returns the last k records, oldest first. k <= 0 means all.
	Recent(ctx context.Context, k int) ([]Record, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

func pair(now time.Time, userInput, response string) []Record {
	return []Record{
		{Timestamp: now, Role: RoleUser, Content: userInput},
		{Timestamp: now, Role: RoleAssistant, Content: response},
	}
}

func tail(recs []Record, k int) []Record {
	if k <= 0 || k >= len(recs) {
		k = len(recs)
	}
	out := make([]Record, k)
	copy(out, recs[len(recs)-k:])
	return out
}
