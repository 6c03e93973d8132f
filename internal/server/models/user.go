// Package models holds the records persisted by the user directory.
package models

import "time"

// User is a registered account. Verifier is the hex encoded password
// verifier the challenge digest is keyed with.
type User struct {
	ID        int64
	Name      string
	LastLogin time.Time
	Verifier  string
	PublicKey string
}

// ActiveUser is an account with an authenticated session.
type ActiveUser struct {
	Name      string
	IP        string
	Port      int
	LoginTime time.Time
}

// LoginHistoryEntry records one successful authentication.
type LoginHistoryEntry struct {
	Name string
	Time time.Time
	IP   string
	Port int
}

// MessageCounter is the per-user message statistics row.
type MessageCounter struct {
	Name      string
	LastLogin time.Time
	Sent      int
	Accepted  int
}
