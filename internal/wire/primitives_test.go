package wire

import (
	"bytes"
	"net"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xFC, 0xFD, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, ^uint64(0)}
	for _, v := range cases {
		var buf bytes.Buffer
		writeVarInt(&buf, v)
		got, err := readVarInt(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("readVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d got %d", v, got)
		}
	}
}

func TestVarIntMonotonicWidth(t *testing.T) {
	// Larger values never encode to a shorter prefix than smaller ones.
	widths := func(v uint64) int {
		var buf bytes.Buffer
		writeVarInt(&buf, v)
		return buf.Len()
	}
	if widths(0xFC) > widths(0xFD) {
		t.Fatalf("0xFC wider than 0xFD")
	}
	if widths(0xFFFF) > widths(0x10000) {
		t.Fatalf("0xFFFF wider than 0x10000")
	}
	if widths(0xFFFFFFFF) > widths(0x100000000) {
		t.Fatalf("0xFFFFFFFF wider than 0x100000000")
	}
}

func TestVarBytesRoundTrip(t *testing.T) {
	want := []byte("the quick brown fox")
	var buf bytes.Buffer
	writeVarBytes(&buf, want)
	got, err := readVarBytes(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFixedStringTruncatesAtNUL(t *testing.T) {
	var buf bytes.Buffer
	writeFixedString(&buf, "tx", 12)
	got, err := readFixedString(bytes.NewReader(buf.Bytes()), 12)
	if err != nil {
		t.Fatal(err)
	}
	if got != "tx" {
		t.Fatalf("got %q want %q", got, "tx")
	}
}

func TestFixedStringTruncatesOverflow(t *testing.T) {
	var buf bytes.Buffer
	writeFixedString(&buf, "waytoolongcommandname", 12)
	if buf.Len() != 12 {
		t.Fatalf("expected fixed 12 bytes, got %d", buf.Len())
	}
}

func TestHash32StringReversesBytes(t *testing.T) {
	var h Hash32
	h[31] = 0xAB
	if got, want := h.String()[:2], "ab"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIPv4MappedBytes(t *testing.T) {
	ip := net.ParseIP("1.2.3.4")
	b := ipv4MappedBytes(ip)
	for i := 0; i < 10; i++ {
		if b[i] != 0 {
			t.Fatalf("expected zero prefix, got %x at %d", b[i], i)
		}
	}
	if b[10] != 0xFF || b[11] != 0xFF {
		t.Fatalf("expected 0xFFFF marker, got %x %x", b[10], b[11])
	}
	if !bytes.Equal(b[12:], []byte{1, 2, 3, 4}) {
		t.Fatalf("expected trailing IPv4 octets, got %v", b[12:])
	}
}

func TestNetAddrRoundTrip(t *testing.T) {
	want := NetAddr{Services: 1, IP: net.ParseIP("127.0.0.1"), Port: 8333}
	var buf bytes.Buffer
	writeNetAddr(&buf, want)
	got, err := readNetAddr(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Services != want.Services || got.Port != want.Port {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if !got.IP.Equal(want.IP) {
		t.Fatalf("got IP %v want %v", got.IP, want.IP)
	}
}

func TestReadFullShortBufferIsUnexpectedEOF(t *testing.T) {
	_, err := readUint32LE(bytes.NewReader([]byte{1, 2}))
	if err != ErrUnexpectedEOF {
		t.Fatalf("got %v want ErrUnexpectedEOF", err)
	}
}
