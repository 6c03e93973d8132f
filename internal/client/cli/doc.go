// Package cli is the terminal user interface of the chat client.
//
// App logs in to the relay, keeps the local store in sync and runs a
// line-oriented REPL. Messages and list changes pushed by the relay are
// printed as they arrive.
package cli
