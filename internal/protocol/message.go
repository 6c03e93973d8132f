package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MaxFrameSize bounds a single encoded frame, trailing newline included.
const MaxFrameSize = 1024

// Action names the request carried by a frame.
type Action string

const (
	ActionPresence    Action = "presence"
	ActionMessage     Action = "message"
	ActionExit        Action = "exit"
	ActionGetContacts Action = "get_contacts"
	ActionAddContact  Action = "add"
	ActionDelContact  Action = "del"
	ActionGetUsers    Action = "get_users"
	ActionPubKeyNeed  Action = "pubkey_need"
)

// Known reports whether a is one of the actions above. The empty action of
// replies and handshake answers counts as known.
func (a Action) Known() bool {
	switch a {
	case "", ActionPresence, ActionMessage, ActionExit, ActionGetContacts,
		ActionAddContact, ActionDelContact, ActionGetUsers, ActionPubKeyNeed:
		return true
	}
	return false
}

// Status codes carried in the response key.
const (
	StatusOK         = 200
	StatusList       = 202
	StatusReset      = 205
	StatusBadRequest = 400
	StatusChallenge  = 511
)

// Error reasons sent by the relay.
const (
	ReasonBadRequest     = "bad request"
	ReasonNameInUse      = "username already in use"
	ReasonNotRegistered  = "user not registered"
	ReasonBadCredentials = "incorrect password"
	ReasonStorage        = "storage failure"
	ReasonNoPublicKey    = "no public key available"
)

// User is the nested user object of presence and list requests.
type User struct {
	AccountName string `json:"account_name,omitempty"`
	PublicKey   string `json:"pubkey,omitempty"`
}

// UnmarshalJSON accepts both the object form and a bare account name string.
func (u *User) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*u = User{AccountName: name}
		return nil
	}

	type plain User
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	*u = User(p)
	return nil
}

// Message is a single protocol frame, request or reply.
type Message struct {
	Action      Action   `json:"action,omitempty"`
	Time        *float64 `json:"time,omitempty"`
	User        *User    `json:"user,omitempty"`
	AccountName string   `json:"account_name,omitempty"`
	From        string   `json:"from,omitempty"`
	To          string   `json:"to,omitempty"`
	Text        string   `json:"message_text,omitempty"`
	Response    int      `json:"response,omitempty"`
	Error       string   `json:"error,omitempty"`
	DataList    []string `json:"data_list,omitzero"`
	Bin         string   `json:"bin,omitempty"`

	// frame is the wire form Decode read m from.
	frame []byte
}

// Frame returns the terminated frame m was decoded from, or nil for a
// message built locally.
func (m *Message) Frame() []byte { return m.frame }

// UserName returns user.account_name or "" if the user object is absent.
func (m *Message) UserName() string {
	if m.User == nil {
		return ""
	}
	return m.User.AccountName
}

// UserKey returns user.pubkey or "" if the user object is absent.
func (m *Message) UserKey() string {
	if m.User == nil {
		return ""
	}
	return m.User.PublicKey
}

// BinBytes decodes the base64 bin payload.
func (m *Message) BinBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Bin)
}

// Now returns the current time in the representation used by the time key.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Timestamp returns a time value for Message.Time.
func Timestamp(v float64) *float64 { return &v }

func OK() *Message { return &Message{Response: StatusOK} }

// List builds a 202 reply. A nil slice is sent as an empty list.
func List(items []string) *Message {
	if items == nil {
		items = []string{}
	}
	return &Message{Response: StatusList, DataList: items}
}

func Reset() *Message { return &Message{Response: StatusReset} }

func BadRequest(reason string) *Message {
	return &Message{Response: StatusBadRequest, Error: reason}
}

// Challenge builds a 511 frame carrying b as base64. The server uses it for
// the nonce and for public key replies, the client for the digest.
func Challenge(b []byte) *Message {
	return &Message{Response: StatusChallenge, Bin: base64.StdEncoding.EncodeToString(b)}
}

// Presence is the first frame a client sends after connecting.
func Presence(name, pubKey string) *Message {
	return &Message{Action: ActionPresence, Time: Timestamp(Now()), User: &User{AccountName: name, PublicKey: pubKey}}
}

// Text builds a direct message from one user to another.
func Text(from, to, text string) *Message {
	return &Message{Action: ActionMessage, Time: Timestamp(Now()), From: from, To: to, Text: text}
}

// Request builds an action issued by name about target. target is left out
// of the frame when empty.
func Request(action Action, name, target string) *Message {
	return &Message{Action: action, Time: Timestamp(Now()), User: &User{AccountName: name}, AccountName: target}
}
