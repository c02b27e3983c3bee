package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned by Decode when the command string doesn't
// match any entry in the message catalog.
var ErrUnknownCommand = errors.New("wire: unknown command")

// Inventory type constants.
const (
	InvError uint32 = 0
	InvTx    uint32 = 1
	InvBlock uint32 = 2
)

// Inventory is a single (type, hash) advertisement entry used by
// inv/getdata/notfound.
type Inventory struct {
	Type uint32
	Hash Hash32
}

func readInventory(r *bytes.Reader) (Inventory, error) {
	var inv Inventory
	t, err := readUint32LE(r)
	if err != nil {
		return inv, err
	}
	h, err := readHash32(r)
	if err != nil {
		return inv, err
	}
	inv.Type = t
	inv.Hash = h
	return inv, nil
}

func writeInventory(buf *bytes.Buffer, inv Inventory) {
	writeUint32LE(buf, inv.Type)
	writeHash32(buf, inv.Hash)
}

func readInventoryList(r *bytes.Reader) ([]Inventory, error) {
	n, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	out := make([]Inventory, n)
	for i := range out {
		inv, err := readInventory(r)
		if err != nil {
			return nil, err
		}
		out[i] = inv
	}
	return out, nil
}

func writeInventoryList(buf *bytes.Buffer, invs []Inventory) {
	writeVarInt(buf, uint64(len(invs)))
	for _, inv := range invs {
		writeInventory(buf, inv)
	}
}

// OutPoint identifies a previously-created transaction output.
type OutPoint struct {
	Hash  Hash32
	Index uint32
}

func readOutPoint(r *bytes.Reader) (OutPoint, error) {
	var o OutPoint
	h, err := readHash32(r)
	if err != nil {
		return o, err
	}
	idx, err := readUint32LE(r)
	if err != nil {
		return o, err
	}
	o.Hash = h
	o.Index = idx
	return o, nil
}

func writeOutPoint(buf *bytes.Buffer, o OutPoint) {
	writeHash32(buf, o.Hash)
	writeUint32LE(buf, o.Index)
}

// TxIn is a transaction input: the on-wire field order (previous_output,
// signature_script, sequence).
type TxIn struct {
	PreviousOutput OutPoint
	SignatureScript []byte
	Sequence        uint32
}

func readTxIn(r *bytes.Reader) (TxIn, error) {
	var in TxIn
	op, err := readOutPoint(r)
	if err != nil {
		return in, err
	}
	sig, err := readVarBytes(r)
	if err != nil {
		return in, err
	}
	seq, err := readUint32LE(r)
	if err != nil {
		return in, err
	}
	in.PreviousOutput = op
	in.SignatureScript = sig
	in.Sequence = seq
	return in, nil
}

func writeTxIn(buf *bytes.Buffer, in TxIn) {
	writeOutPoint(buf, in.PreviousOutput)
	writeVarBytes(buf, in.SignatureScript)
	writeUint32LE(buf, in.Sequence)
}

// TxOut is a transaction output: (value, pk_script).
type TxOut struct {
	Value    int64
	PkScript []byte
}

func readTxOut(r *bytes.Reader) (TxOut, error) {
	var out TxOut
	v, err := readInt64LE(r)
	if err != nil {
		return out, err
	}
	script, err := readVarBytes(r)
	if err != nil {
		return out, err
	}
	out.Value = v
	out.PkScript = script
	return out, nil
}

func writeTxOut(buf *bytes.Buffer, out TxOut) {
	writeInt64LE(buf, out.Value)
	writeVarBytes(buf, out.PkScript)
}

// Transaction is a full Bitcoin-family transaction.
type Transaction struct {
	Version  uint32
	TxIn     []TxIn
	TxOut    []TxOut
	LockTime uint32
}

func readTransaction(r *bytes.Reader) (Transaction, error) {
	var tx Transaction
	v, err := readUint32LE(r)
	if err != nil {
		return tx, err
	}
	inCount, err := readVarInt(r)
	if err != nil {
		return tx, err
	}
	ins := make([]TxIn, inCount)
	for i := range ins {
		in, err := readTxIn(r)
		if err != nil {
			return tx, err
		}
		ins[i] = in
	}
	outCount, err := readVarInt(r)
	if err != nil {
		return tx, err
	}
	outs := make([]TxOut, outCount)
	for i := range outs {
		out, err := readTxOut(r)
		if err != nil {
			return tx, err
		}
		outs[i] = out
	}
	lockTime, err := readUint32LE(r)
	if err != nil {
		return tx, err
	}
	tx.Version = v
	tx.TxIn = ins
	tx.TxOut = outs
	tx.LockTime = lockTime
	return tx, nil
}

func writeTransaction(buf *bytes.Buffer, tx Transaction) {
	writeUint32LE(buf, tx.Version)
	writeVarInt(buf, uint64(len(tx.TxIn)))
	for _, in := range tx.TxIn {
		writeTxIn(buf, in)
	}
	writeVarInt(buf, uint64(len(tx.TxOut)))
	for _, out := range tx.TxOut {
		writeTxOut(buf, out)
	}
	writeUint32LE(buf, tx.LockTime)
}

// Block is the wire representation of a block: the 6 header fields plus an
// optional transaction list (empty/absent in header-only form, e.g. inside
// a headers message).
type Block struct {
	Version      uint32
	PrevBlock    Hash32
	MerkleRoot   Hash32
	Timestamp    uint32
	Bits         uint32
	Nonce        uint32
	Transactions []Transaction
}

// HeaderBytes serializes just the 6 fixed header fields, the input to the
// block-hash double-SHA-256.
func (b Block) HeaderBytes() []byte {
	buf := new(bytes.Buffer)
	writeUint32LE(buf, b.Version)
	writeHash32(buf, b.PrevBlock)
	writeHash32(buf, b.MerkleRoot)
	writeUint32LE(buf, b.Timestamp)
	writeUint32LE(buf, b.Bits)
	writeUint32LE(buf, b.Nonce)
	return buf.Bytes()
}

func readBlock(r *bytes.Reader) (Block, error) {
	var b Block
	v, err := readUint32LE(r)
	if err != nil {
		return b, err
	}
	prev, err := readHash32(r)
	if err != nil {
		return b, err
	}
	merkle, err := readHash32(r)
	if err != nil {
		return b, err
	}
	ts, err := readUint32LE(r)
	if err != nil {
		return b, err
	}
	bits, err := readUint32LE(r)
	if err != nil {
		return b, err
	}
	nonce, err := readUint32LE(r)
	if err != nil {
		return b, err
	}
	b.Version = v
	b.PrevBlock = prev
	b.MerkleRoot = merkle
	b.Timestamp = ts
	b.Bits = bits
	b.Nonce = nonce

	// A bare 80-byte header with nothing after it has no transaction
	// count; a headers entry carries a txn_count (always 0) and a full
	// block message carries the transaction list.
	if r.Len() == 0 {
		return b, nil
	}
	txCount, err := readVarInt(r)
	if err != nil {
		return b, err
	}
	txns := make([]Transaction, txCount)
	for i := range txns {
		tx, err := readTransaction(r)
		if err != nil {
			return b, err
		}
		txns[i] = tx
	}
	b.Transactions = txns
	return b, nil
}

func writeBlock(buf *bytes.Buffer, b Block, includeTxns bool) {
	buf.Write(b.HeaderBytes())
	if !includeTxns {
		return
	}
	writeVarInt(buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		writeTransaction(buf, tx)
	}
}

// Version is the first message sent in the handshake.
type Version struct {
	Version     int32
	Services    uint64
	Timestamp   int64
	AddrRecv    NetAddr
	AddrFrom    NetAddr
	Nonce       uint64
	UserAgent   string
}

// VerAck carries no payload.
type VerAck struct{}

// Ping/Pong carry a single nonce used to measure round-trip latency.
type Ping struct{ Nonce uint64 }
type Pong struct{ Nonce uint64 }

// Inv/GetData/NotFound all wrap a list of inventory vectors.
type Inv struct{ Inventory []Inventory }
type GetData struct{ Inventory []Inventory }
type NotFound struct{ Inventory []Inventory }

// Addr wraps a list of timestamped peer addresses.
type Addr struct{ Addresses []NetAddrTimestamped }

// Tx wraps a single transaction.
type Tx struct{ Transaction Transaction }

// Headers wraps a list of header-only blocks.
type Headers struct{ Headers []Block }

// GetBlocks requests an inv of blocks following the fork point identified
// by Locator.
type GetBlocks struct {
	Version  uint32
	Locator  []Hash32
	HashStop Hash32
}

// MemPool and GetAddr carry no payload.
type MemPool struct{}
type GetAddr struct{}

// Command names.
const (
	CmdVersion  = "version"
	CmdVerAck   = "verack"
	CmdPing     = "ping"
	CmdPong     = "pong"
	CmdInv      = "inv"
	CmdGetData  = "getdata"
	CmdNotFound = "notfound"
	CmdAddr     = "addr"
	CmdTx       = "tx"
	CmdBlock    = "block"
	CmdHeaders  = "headers"
	CmdGetBlocks = "getblocks"
	CmdMemPool  = "mempool"
	CmdGetAddr  = "getaddr"
)

// Encode serializes a message value to its wire payload. It panics if msg
// is not one of the types declared in this file — that is a programming
// error, not a protocol error.
func Encode(msg interface{}) []byte {
	buf := new(bytes.Buffer)
	switch m := msg.(type) {
	case Version:
		writeInt32LE(buf, m.Version)
		writeUint64LE(buf, m.Services)
		writeInt64LE(buf, m.Timestamp)
		writeNetAddr(buf, m.AddrRecv)
		writeNetAddr(buf, m.AddrFrom)
		writeUint64LE(buf, m.Nonce)
		writeVarString(buf, m.UserAgent)
	case VerAck:
	case Ping:
		writeUint64LE(buf, m.Nonce)
	case Pong:
		writeUint64LE(buf, m.Nonce)
	case Inv:
		writeInventoryList(buf, m.Inventory)
	case GetData:
		writeInventoryList(buf, m.Inventory)
	case NotFound:
		writeInventoryList(buf, m.Inventory)
	case Addr:
		writeVarInt(buf, uint64(len(m.Addresses)))
		for _, a := range m.Addresses {
			writeNetAddrTimestamped(buf, a)
		}
	case Tx:
		writeTransaction(buf, m.Transaction)
	case Block:
		writeBlock(buf, m, true)
	case Headers:
		writeVarInt(buf, uint64(len(m.Headers)))
		for _, h := range m.Headers {
			writeBlock(buf, h, false)
			writeVarInt(buf, 0) // txn_count, always 0 in a headers entry
		}
	case GetBlocks:
		writeUint32LE(buf, m.Version)
		writeVarInt(buf, uint64(len(m.Locator)))
		for _, h := range m.Locator {
			writeHash32(buf, h)
		}
		writeHash32(buf, m.HashStop)
	case MemPool:
	case GetAddr:
	default:
		panic(fmt.Sprintf("wire: Encode called with unhandled type %T", msg))
	}
	return buf.Bytes()
}

// Decode parses payload according to command, returning one of the message
// types declared in this file. An unrecognized command yields
// ErrUnknownCommand.
func Decode(command string, payload []byte) (interface{}, error) {
	r := bytes.NewReader(payload)
	switch command {
	case CmdVersion:
		var m Version
		v, err := readInt32LE(r)
		if err != nil {
			return nil, err
		}
		services, err := readUint64LE(r)
		if err != nil {
			return nil, err
		}
		ts, err := readInt64LE(r)
		if err != nil {
			return nil, err
		}
		recv, err := readNetAddr(r)
		if err != nil {
			return nil, err
		}
		from, err := readNetAddr(r)
		if err != nil {
			return nil, err
		}
		nonce, err := readUint64LE(r)
		if err != nil {
			return nil, err
		}
		ua, err := readVarString(r)
		if err != nil {
			return nil, err
		}
		m.Version, m.Services, m.Timestamp = v, services, ts
		m.AddrRecv, m.AddrFrom, m.Nonce, m.UserAgent = recv, from, nonce, ua
		return m, nil

	case CmdVerAck:
		return VerAck{}, nil

	case CmdPing:
		n, err := readUint64LE(r)
		if err != nil {
			return nil, err
		}
		return Ping{Nonce: n}, nil

	case CmdPong:
		n, err := readUint64LE(r)
		if err != nil {
			return nil, err
		}
		return Pong{Nonce: n}, nil

	case CmdInv:
		invs, err := readInventoryList(r)
		if err != nil {
			return nil, err
		}
		return Inv{Inventory: invs}, nil

	case CmdGetData:
		invs, err := readInventoryList(r)
		if err != nil {
			return nil, err
		}
		return GetData{Inventory: invs}, nil

	case CmdNotFound:
		invs, err := readInventoryList(r)
		if err != nil {
			return nil, err
		}
		return NotFound{Inventory: invs}, nil

	case CmdAddr:
		n, err := readVarInt(r)
		if err != nil {
			return nil, err
		}
		addrs := make([]NetAddrTimestamped, n)
		for i := range addrs {
			a, err := readNetAddrTimestamped(r)
			if err != nil {
				return nil, err
			}
			addrs[i] = a
		}
		return Addr{Addresses: addrs}, nil

	case CmdTx:
		tx, err := readTransaction(r)
		if err != nil {
			return nil, err
		}
		return Tx{Transaction: tx}, nil

	case CmdBlock:
		b, err := readBlock(r)
		if err != nil {
			return nil, err
		}
		return b, nil

	case CmdHeaders:
		n, err := readVarInt(r)
		if err != nil {
			return nil, err
		}
		headers := make([]Block, n)
		for i := range headers {
			h, err := readBlock(r)
			if err != nil {
				return nil, err
			}
			headers[i] = h
		}
		return Headers{Headers: headers}, nil

	case CmdGetBlocks:
		var m GetBlocks
		v, err := readUint32LE(r)
		if err != nil {
			return nil, err
		}
		n, err := readVarInt(r)
		if err != nil {
			return nil, err
		}
		locator := make([]Hash32, n)
		for i := range locator {
			h, err := readHash32(r)
			if err != nil {
				return nil, err
			}
			locator[i] = h
		}
		stop, err := readHash32(r)
		if err != nil {
			return nil, err
		}
		m.Version, m.Locator, m.HashStop = v, locator, stop
		return m, nil

	case CmdMemPool:
		return MemPool{}, nil

	case CmdGetAddr:
		return GetAddr{}, nil

	default:
		return nil, ErrUnknownCommand
	}
}
