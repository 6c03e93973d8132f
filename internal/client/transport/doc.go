// Package transport is the chat client's connection to the relay.
//
// Connect dials the relay (retrying a bounded number of times), runs the
// challenge handshake and starts a receiver goroutine, which is the only
// reader of the socket. Requests are serialized: each one sends a frame and
// waits for the reply handed over by the receiver. Frames nobody asked for
// (incoming messages, 205 list resets, loss of the connection) are reported
// on the Events channel.
package transport
