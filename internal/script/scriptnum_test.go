package script

import (
	"bytes"
	"testing"
)

func TestScriptNumRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, 128, -128, 255, 256, -256, 32767, 32768, -32768, 16777215, -16777215}
	for _, n := range cases {
		enc := intToScriptNum(n)
		got, err := scriptNumToInt(enc)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d round-tripped to %d (encoded %x)", n, got, enc)
		}
	}
}

func TestScriptNumZeroEncodesEmpty(t *testing.T) {
	if enc := intToScriptNum(0); enc != nil {
		t.Fatalf("expected empty encoding for zero, got %x", enc)
	}
}

func TestScriptNumTooLong(t *testing.T) {
	_, err := scriptNumToInt([]byte{1, 2, 3, 4, 5})
	if err == nil {
		t.Fatal("expected an error for an oversized scriptnum")
	}
}

func TestCastToBoolTable(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want bool
	}{
		{"empty", nil, false},
		{"single zero", []byte{0x00}, false},
		{"single nonzero", []byte{0x01}, true},
		{"negative zero", []byte{0x80}, false},
		{"positive zero padded then negative-zero sign byte", []byte{0x00, 0x80}, false},
		{"nonzero low byte then negative-zero sign byte", []byte{0x01, 0x80}, true},
		{"trailing nonzero, not 0x80", []byte{0x00, 0x01}, true},
	}
	for _, c := range cases {
		if got := castToBool(c.in); got != c.want {
			t.Errorf("%s: castToBool(%x) = %v, want %v", c.name, c.in, got, c.want)
		}
	}
}

func TestBoolBytesCanonical(t *testing.T) {
	if !bytes.Equal(boolBytes(true), []byte{1}) {
		t.Fatal("expected canonical true encoding [1]")
	}
	if boolBytes(false) != nil {
		t.Fatal("expected canonical false encoding to be empty")
	}
}
