// Package framing implements the native messaging wire format: a 4-byte
// little-endian length prefix followed by that many bytes of UTF-8 JSON.
// The same routines carry requests and responses in both directions.
package framing

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single frame payload.
const MaxMessageSize = 1 << 20

const headerSize = 4

var (
	// ErrTruncatedHeader means fewer than 4 header bytes were available,
	// which is how a closed peer shows up.
	ErrTruncatedHeader = errors.New("framing: truncated header")
	// ErrMalformedPayload means the payload was short or not valid JSON.
	ErrMalformedPayload = errors.New("framing: malformed payload")
	// ErrOversizedMessage means the payload exceeds MaxMessageSize.
	ErrOversizedMessage = errors.New("framing: oversized message")
)

// WriteFrame writes payload as a single frame. The payload is written as-is;
// callers are responsible for it being JSON.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrOversizedMessage, len(payload))
	}
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	// One Write call so a frame is never interleaved with another writer's output.
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("framing: write: %w", err)
	}
	return nil
}

// ReadFrame reads one frame and returns its raw payload. The payload is
// checked to be valid JSON.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedHeader
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncatedHeader, err)
	}

	n := binary.LittleEndian.Uint32(header[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversizedMessage, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: want %d bytes: %v", ErrMalformedPayload, n, err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	return payload, nil
}

// Encode marshals v to JSON and writes it as a frame.
func Encode(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("framing: marshal: %w", err)
	}
	return WriteFrame(w, data)
}

// Decode reads one frame and unmarshals it into v.
func Decode(r io.Reader, v any) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
