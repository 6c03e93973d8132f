package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/jimrelay/internal/common"
)

var (
	ErrFrameTooLarge = fmt.Errorf("%w: frame exceeds %d bytes", common.ErrFraming, MaxFrameSize)
	ErrNotObject     = fmt.Errorf("%w: payload is not a JSON object", common.ErrFraming)
	ErrTrailingData  = fmt.Errorf("%w: trailing data after object", common.ErrFraming)
	ErrUnknownAction = fmt.Errorf("%w: unknown action", common.ErrFraming)
)

// Encode serializes m and appends the frame terminator. HTML characters are
// written as they are.
func Encode(m *Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrFraming, err)
	}
	b := buf.Bytes()
	if len(b) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return b, nil
}

// Decode parses a single frame with or without its terminator. Actions
// outside the protocol are refused.
func Decode(frame []byte) (*Message, error) {
	if len(frame) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := bytes.TrimSpace(frame)
	if len(body) == 0 || body[0] != '{' {
		return nil, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrFraming, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	if !m.Action.Known() {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, m.Action)
	}

	if frame[len(frame)-1] == '\n' {
		m.frame = bytes.Clone(frame)
	} else if len(frame) < MaxFrameSize {
		m.frame = append(bytes.Clone(frame), '\n')
	}
	return &m, nil
}

// FrameReader splits a byte stream into newline-terminated frames.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, MaxFrameSize)}
}

// ReadFrame returns the next frame including its terminator. A frame longer
// than MaxFrameSize is skipped up to the next newline and reported as
// ErrFrameTooLarge, after which the reader can be used again. A stream that
// ends in the middle of a frame yields io.ErrUnexpectedEOF.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	line, err := fr.r.ReadSlice('\n')
	switch {
	case err == nil:
		return bytes.Clone(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		for {
			_, err = fr.r.ReadSlice('\n')
			if err == nil {
				return nil, ErrFrameTooLarge
			}
			if !errors.Is(err, bufio.ErrBufferFull) {
				return nil, err
			}
		}
	case errors.Is(err, io.EOF) && len(line) > 0:
		return nil, io.ErrUnexpectedEOF
	default:
		return nil, err
	}
}
