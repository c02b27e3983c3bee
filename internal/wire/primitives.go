// Package wire implements the binary framing and message codec of a
// Bitcoin-family peer-to-peer protocol: fixed and variable-width integer
// fields, the envelope header, and one encode/decode pair per message type.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// ErrUnexpectedEOF is returned by any field decoder that runs out of bytes
// mid-payload. It is fatal to the frame that produced it.
var ErrUnexpectedEOF = errors.New("wire: unexpected end of payload")

// Hash32 is a 32-byte double-SHA-256 digest, kept internally in the byte
// order it was computed in. The wire little-endian form and the
// byte-reversed display form are both produced on demand.
type Hash32 [32]byte

// String renders the byte-reversed, lowercase hex form conventionally used
// to display block and transaction hashes.
func (h Hash32) String() string {
	var rev Hash32
	for i := range h {
		rev[i] = h[len(h)-1-i]
	}
	return fmt.Sprintf("%x", rev[:])
}

func readFull(r *bytes.Reader, n int) ([]byte, error) {
	if r.Len() < n {
		return nil, ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, ErrUnexpectedEOF
	}
	return buf, nil
}

func readUint8(r *bytes.Reader) (uint8, error) {
	b, err := readFull(r, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUint16LE(r *bytes.Reader) (uint16, error) {
	b, err := readFull(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readUint16BE(r *bytes.Reader) (uint16, error) {
	b, err := readFull(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readUint32LE(r *bytes.Reader) (uint32, error) {
	b, err := readFull(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readInt32LE(r *bytes.Reader) (int32, error) {
	v, err := readUint32LE(r)
	return int32(v), err
}

func readUint64LE(r *bytes.Reader) (uint64, error) {
	b, err := readFull(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func readInt64LE(r *bytes.Reader) (int64, error) {
	v, err := readUint64LE(r)
	return int64(v), err
}

func writeUint8(buf *bytes.Buffer, v uint8) {
	buf.WriteByte(v)
}

func writeUint16LE(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint16BE(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt32LE(buf *bytes.Buffer, v int32) {
	writeUint32LE(buf, uint32(v))
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt64LE(buf *bytes.Buffer, v int64) {
	writeUint64LE(buf, uint64(v))
}

// readVarInt decodes the compact variable-length unsigned integer: the
// first byte selects the width of what follows.
func readVarInt(r *bytes.Reader) (uint64, error) {
	first, err := readUint8(r)
	if err != nil {
		return 0, err
	}
	switch first {
	case 0xFD:
		v, err := readUint16LE(r)
		return uint64(v), err
	case 0xFE:
		v, err := readUint32LE(r)
		return uint64(v), err
	case 0xFF:
		return readUint64LE(r)
	default:
		return uint64(first), nil
	}
}

// writeVarInt encodes v using the smallest prefix form that fits.
func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xFD:
		writeUint8(buf, uint8(v))
	case v <= 0xFFFF:
		writeUint8(buf, 0xFD)
		writeUint16LE(buf, uint16(v))
	case v <= 0xFFFFFFFF:
		writeUint8(buf, 0xFE)
		writeUint32LE(buf, uint32(v))
	default:
		writeUint8(buf, 0xFF)
		writeUint64LE(buf, v)
	}
}

func readVarBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	return readFull(r, int(n))
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeVarInt(buf, uint64(len(b)))
	buf.Write(b)
}

func readVarString(r *bytes.Reader) (string, error) {
	b, err := readVarBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeVarString(buf *bytes.Buffer, s string) {
	writeVarBytes(buf, []byte(s))
}

// readFixedString reads an N-byte zero-padded ASCII field, trimming at the
// first NUL byte.
func readFixedString(r *bytes.Reader, n int) (string, error) {
	b, err := readFull(r, n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// writeFixedString writes s into an N-byte zero-padded field. s is
// truncated if it doesn't fit.
func writeFixedString(buf *bytes.Buffer, s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	buf.Write(b)
}

func readHash32(r *bytes.Reader) (Hash32, error) {
	var h Hash32
	b, err := readFull(r, 32)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func writeHash32(buf *bytes.Buffer, h Hash32) {
	buf.Write(h[:])
}

// NetAddr is the IPv4-mapped network address structure used inside
// version/addr messages, without the addr-only leading timestamp.
type NetAddr struct {
	Services uint64
	IP       net.IP // 16 bytes, IPv4-mapped
	Port     uint16
}

func readNetAddr(r *bytes.Reader) (NetAddr, error) {
	var a NetAddr
	services, err := readUint64LE(r)
	if err != nil {
		return a, err
	}
	ipBytes, err := readFull(r, 16)
	if err != nil {
		return a, err
	}
	port, err := readUint16BE(r)
	if err != nil {
		return a, err
	}
	a.Services = services
	a.IP = net.IP(ipBytes)
	a.Port = port
	return a, nil
}

func writeNetAddr(buf *bytes.Buffer, a NetAddr) {
	writeUint64LE(buf, a.Services)
	buf.Write(ipv4MappedBytes(a.IP))
	writeUint16BE(buf, a.Port)
}

// NetAddrTimestamped is the addr-message variant that prepends a 4-byte
// unix-seconds timestamp.
type NetAddrTimestamped struct {
	Timestamp uint32
	Addr      NetAddr
}

func readNetAddrTimestamped(r *bytes.Reader) (NetAddrTimestamped, error) {
	var a NetAddrTimestamped
	ts, err := readUint32LE(r)
	if err != nil {
		return a, err
	}
	addr, err := readNetAddr(r)
	if err != nil {
		return a, err
	}
	a.Timestamp = ts
	a.Addr = addr
	return a, nil
}

func writeNetAddrTimestamped(buf *bytes.Buffer, a NetAddrTimestamped) {
	writeUint32LE(buf, a.Timestamp)
	writeNetAddr(buf, a.Addr)
}

// ipv4MappedBytes renders ip as the 16-byte IPv4-in-IPv6 form: 10 zero
// bytes, 0xFF 0xFF, then the 4 IPv4 octets. Non-IPv4 addresses fall back to
// their raw 16-byte form.
func ipv4MappedBytes(ip net.IP) []byte {
	out := make([]byte, 16)
	if v4 := ip.To4(); v4 != nil {
		out[10] = 0xFF
		out[11] = 0xFF
		copy(out[12:], v4)
		return out
	}
	if v16 := ip.To16(); v16 != nil {
		copy(out, v16)
	}
	return out
}
