// Package protocol implements the relay wire format: one compact JSON object
// per frame, terminated by a single newline and never longer than
// MaxFrameSize bytes.
//
// # Keys
//
// Every frame is an object drawn from a closed set of keys:
//
//	action        one of the Action constants
//	time          sender timestamp, seconds since the epoch
//	user          {"account_name": ..., "pubkey": ...}
//	account_name  target user of add, del and pubkey_need
//	from, to      message endpoints
//	message_text  message body
//	response      status code of a reply
//	error         human-readable reason of a 400 reply
//	data_list     list payload of a 202 reply
//	bin           base64 payload (nonce, digest or public key)
//
// Decode rejects anything else: unknown keys, non-object payloads, trailing
// data and oversized frames. All such failures wrap common.ErrFraming.
package protocol
