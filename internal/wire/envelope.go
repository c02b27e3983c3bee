package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of a message envelope header: 4-byte magic,
// 12-byte command, 4-byte length, 4-byte checksum.
const HeaderSize = 24

// MaxPayloadSize bounds a single frame's payload to guard the framer
// against a peer claiming an absurd length.
const MaxPayloadSize = 32 * 1024 * 1024

// ErrInvalidChecksum is swallowed by the session layer: it indicates a
// corrupt frame, not a protocol violation worth disconnecting over.
var ErrInvalidChecksum = errors.New("wire: invalid checksum")

// ErrOversizedPayload is fatal: a peer claiming more than MaxPayloadSize is
// either broken or malicious.
var ErrOversizedPayload = errors.New("wire: payload exceeds maximum size")

// MessageHeader is the 24-byte envelope preceding every message payload.
type MessageHeader struct {
	Magic    uint32
	Command  string
	Length   uint32
	Checksum [4]byte
}

// checksum computes the first 4 bytes of double-SHA-256(payload), the
// envelope's integrity field.
func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// CreateMessagePacket wraps payload in a full envelope for the given
// network and command, ready to write to a connection.
func CreateMessagePacket(magic uint32, command string, payload []byte) ([]byte, error) {
	if len(command) > 12 {
		return nil, fmt.Errorf("wire: command %q exceeds 12 bytes", command)
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, magic)
	writeFixedString(buf, command, 12)
	writeUint32LE(buf, uint32(len(payload)))
	sum := checksum(payload)
	buf.Write(sum[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Frame is one fully decoded, checksum-verified envelope: its command and
// raw payload, ready for Decode.
type Frame struct {
	Command string
	Payload []byte
}

// Framer accumulates bytes read off a connection and yields complete,
// checksum-verified frames, buffering a partial trailing frame across
// reads, generalized here to parse as many complete frames as the buffer
// holds before asking for more bytes.
type Framer struct {
	magic uint32
	buf   bytes.Buffer
}

// NewFramer creates a Framer that only accepts frames whose magic matches
// the given network.
func NewFramer(magic uint32) *Framer {
	return &Framer{magic: magic}
}

// Feed appends newly read bytes to the framer's internal buffer.
func (f *Framer) Feed(b []byte) {
	f.buf.Write(b)
}

// Next extracts and returns the next complete frame from the buffered
// bytes, if one is present. ok is false when fewer than a full frame's
// worth of bytes are buffered (the caller should read more from the
// connection and Feed again). A bad checksum yields ErrInvalidChecksum
// with ok true — the frame is still consumed from the buffer, it just
// isn't usable. A wrong magic or an oversized length yields an error with
// ok false and leaves the buffer as it was.
func (f *Framer) Next() (frame Frame, ok bool, err error) {
	raw := f.buf.Bytes()
	if len(raw) < HeaderSize {
		return Frame{}, false, nil
	}

	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != f.magic {
		return Frame{}, false, fmt.Errorf("wire: unexpected magic %08x", magic)
	}
	command := fixedStringFromBytes(raw[4:16])
	length := binary.LittleEndian.Uint32(raw[16:20])
	if length > MaxPayloadSize {
		return Frame{}, false, ErrOversizedPayload
	}
	var wantSum [4]byte
	copy(wantSum[:], raw[20:24])

	total := HeaderSize + int(length)
	if len(raw) < total {
		return Frame{}, false, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[HeaderSize:total])
	f.buf.Next(total)

	if checksum(payload) != wantSum {
		return Frame{Command: command}, true, ErrInvalidChecksum
	}
	return Frame{Command: command, Payload: payload}, true, nil
}

// fixedStringFromBytes trims an in-place 12-byte command field at its
// first NUL, mirroring readFixedString without consuming a Reader.
func fixedStringFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
