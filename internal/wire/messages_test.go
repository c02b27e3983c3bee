package wire

import (
	"net"
	"testing"
)

func TestVersionRoundTrip(t *testing.T) {
	want := Version{
		Version:   ProtocolVersion,
		Services:  uint64(ServiceNodeNetwork),
		Timestamp: 1700000000,
		AddrRecv:  NetAddr{Services: 1, IP: net.ParseIP("1.2.3.4"), Port: 8333},
		AddrFrom:  NetAddr{Services: 1, IP: net.ParseIP("5.6.7.8"), Port: 8333},
		Nonce:     0xDEADBEEFCAFEBABE,
		UserAgent: "/chainpeer:0.1/",
	}
	got, err := Decode(CmdVersion, Encode(want))
	if err != nil {
		t.Fatal(err)
	}
	v, ok := got.(Version)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if v.Version != want.Version || v.Nonce != want.Nonce || v.UserAgent != want.UserAgent {
		t.Fatalf("got %+v want %+v", v, want)
	}
	if !v.AddrRecv.IP.Equal(want.AddrRecv.IP) {
		t.Fatalf("got recv IP %v want %v", v.AddrRecv.IP, want.AddrRecv.IP)
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	got, err := Decode(CmdPing, Encode(Ping{Nonce: 42}))
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := got.(Ping); !ok || p.Nonce != 42 {
		t.Fatalf("got %+v", got)
	}

	got, err = Decode(CmdPong, Encode(Pong{Nonce: 99}))
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := got.(Pong); !ok || p.Nonce != 99 {
		t.Fatalf("got %+v", got)
	}
}

func TestInvGetDataRoundTrip(t *testing.T) {
	invs := []Inventory{
		{Type: InvBlock, Hash: Hash32{1}},
		{Type: InvTx, Hash: Hash32{2}},
	}
	got, err := Decode(CmdInv, Encode(Inv{Inventory: invs}))
	if err != nil {
		t.Fatal(err)
	}
	inv, ok := got.(Inv)
	if !ok || len(inv.Inventory) != 2 {
		t.Fatalf("got %+v", got)
	}
	if inv.Inventory[0].Type != InvBlock || inv.Inventory[1].Type != InvTx {
		t.Fatalf("got %+v", inv.Inventory)
	}
}

func TestBlockRoundTripWithTransactions(t *testing.T) {
	block := Block{
		Version:    1,
		PrevBlock:  Hash32{0xAA},
		MerkleRoot: Hash32{0xBB},
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
		Transactions: []Transaction{{
			Version: 1,
			TxIn: []TxIn{{
				PreviousOutput:  OutPoint{Hash: Hash32{}, Index: 0xFFFFFFFF},
				SignatureScript: []byte{0x01, 0x02},
				Sequence:        0xFFFFFFFF,
			}},
			TxOut: []TxOut{{
				Value:    5000000000,
				PkScript: []byte{0x76, 0xa9},
			}},
			LockTime: 0,
		}},
	}

	got, err := Decode(CmdBlock, Encode(block))
	if err != nil {
		t.Fatal(err)
	}
	b, ok := got.(Block)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if b.Version != block.Version || b.Bits != block.Bits || b.Nonce != block.Nonce {
		t.Fatalf("got %+v want %+v", b, block)
	}
	if len(b.Transactions) != 1 || b.Transactions[0].TxOut[0].Value != 5000000000 {
		t.Fatalf("got transactions %+v", b.Transactions)
	}
}

func TestHeadersRoundTrip(t *testing.T) {
	headers := Headers{Headers: []Block{
		{Version: 1, Timestamp: 111, Bits: 222, Nonce: 333},
		{Version: 2, Timestamp: 444, Bits: 555, Nonce: 666},
	}}
	got, err := Decode(CmdHeaders, Encode(headers))
	if err != nil {
		t.Fatal(err)
	}
	h, ok := got.(Headers)
	if !ok || len(h.Headers) != 2 {
		t.Fatalf("got %+v", got)
	}
	if h.Headers[0].Timestamp != 111 || h.Headers[1].Nonce != 666 {
		t.Fatalf("got %+v", h.Headers)
	}
}

func TestGetBlocksRoundTrip(t *testing.T) {
	want := GetBlocks{
		Version:  uint32(ProtocolVersion),
		Locator:  []Hash32{{1}, {2}, {3}},
		HashStop: Hash32{},
	}
	got, err := Decode(CmdGetBlocks, Encode(want))
	if err != nil {
		t.Fatal(err)
	}
	gb, ok := got.(GetBlocks)
	if !ok || len(gb.Locator) != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	_, err := Decode("bogus", nil)
	if err != ErrUnknownCommand {
		t.Fatalf("got %v want ErrUnknownCommand", err)
	}
}

func TestVerAckAndGetAddrEmptyPayload(t *testing.T) {
	if len(Encode(VerAck{})) != 0 {
		t.Fatal("verack should encode to empty payload")
	}
	got, err := Decode(CmdVerAck, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(VerAck); !ok {
		t.Fatalf("got %T", got)
	}

	got, err = Decode(CmdGetAddr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(GetAddr); !ok {
		t.Fatalf("got %T", got)
	}
}
