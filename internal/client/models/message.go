// Package models defines the records kept in the chat client's local store.
package models

import "time"

// Direction tells whether a stored message was received or sent.
type Direction string

const (
	Incoming Direction = "in"
	Outgoing Direction = "out"
)

// Message is one line of the conversation history with a contact.
type Message struct {
	ID        int64
	Contact   string
	Direction Direction
	Text      string
	CreatedAt time.Time
}
