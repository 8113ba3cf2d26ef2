// Package protocol defines the wire format spoken between clients and the
// broker: a 4-byte unsigned big-endian length prefix followed by exactly
// that many bytes of UTF-8 JSON, one logical message per frame. It also
// holds the UDP discovery tokens.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize bounds a single frame's payload. Anything larger is treated
// as a protocol error rather than an allocation request.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame from r and returns its payload.
// An oversized frame is drained so the stream stays framed, and
// ErrFrameTooLarge is returned; the caller may keep reading afterwards.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return nil, err
		}
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
