package script

import "testing"

func TestVMP2PKHStyleUnlock(t *testing.T) {
	pubKey := make([]byte, 33)
	for i := range pubKey {
		pubKey[i] = byte(i)
	}
	pubKeyHash := []byte{
		0xc3, 0x1b, 0x1d, 0x87, 0xd3, 0x52, 0xc7, 0xf1, 0x7b, 0xc1,
		0xe2, 0x49, 0x42, 0xb0, 0x5b, 0xdd, 0x4c, 0x33, 0x87, 0xea,
	}

	sig := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	scriptSig := append([]byte{byte(len(sig))}, sig...)
	scriptSig = append(scriptSig, byte(len(pubKey)))
	scriptSig = append(scriptSig, pubKey...)

	scriptPubKey := []byte{byte(OpDup), byte(OpHash160), byte(len(pubKeyHash))}
	scriptPubKey = append(scriptPubKey, pubKeyHash...)
	scriptPubKey = append(scriptPubKey, byte(OpEqualVerify), byte(OpCheckSig))

	vm := NewVM(nil, StaticChecker(true))
	if err := vm.Execute(scriptSig); err != nil {
		t.Fatalf("scriptSig: %v", err)
	}
	if err := vm.Execute(scriptPubKey); err != nil {
		t.Fatalf("scriptPubKey: %v", err)
	}
	if !vm.Success() {
		t.Fatal("expected the script to unlock")
	}
}

func TestVMP2PKHStyleWrongHash(t *testing.T) {
	pubKey := make([]byte, 33)
	for i := range pubKey {
		pubKey[i] = byte(i)
	}
	wrongHash := make([]byte, 20)

	scriptSig := append([]byte{byte(len(pubKey))}, pubKey...)
	scriptPubKey := []byte{byte(OpHash160), byte(len(wrongHash))}
	scriptPubKey = append(scriptPubKey, wrongHash...)
	scriptPubKey = append(scriptPubKey, byte(OpEqual))

	vm := NewVM(nil, StaticChecker(true))
	if err := vm.Execute(scriptSig); err != nil {
		t.Fatalf("scriptSig: %v", err)
	}
	if err := vm.Execute(scriptPubKey); err != nil {
		t.Fatalf("scriptPubKey: %v", err)
	}
	if vm.Success() {
		t.Fatal("expected the script to fail on a mismatched hash")
	}
}

func TestVMIfElseEndIfNesting(t *testing.T) {
	// push 0, OP_IF (false branch) push 1 OP_ELSE push 2 OP_ENDIF -> expect 2
	raw := []byte{
		0x00,
		byte(OpIf),
		0x01, 0x01,
		byte(OpElse),
		0x01, 0x02,
		byte(OpEndIf),
	}
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err != nil {
		t.Fatal(err)
	}
	if !vm.Success() {
		t.Fatal("expected truthy result from the else branch")
	}
	top := vm.top()
	if len(top) != 1 || top[0] != 2 {
		t.Fatalf("got top %x want [2]", top)
	}
}

func TestVMNestedIfSkipsInnerPushesWhenOuterFalse(t *testing.T) {
	// outer OP_IF is false; the inner OP_IF/OP_ELSE/OP_ENDIF must not push
	// anything even though its own condition byte would be truthy.
	raw := []byte{
		0x00, byte(OpIf), // outer false
		0x01, 0x01, byte(OpIf), // inner, never reached for execution
		0x01, 0x02,
		byte(OpElse),
		0x01, 0x03,
		byte(OpEndIf),
		byte(OpEndIf),
		0x01, 0x09, // pushed unconditionally after both ifs close
	}
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err != nil {
		t.Fatal(err)
	}
	if vm.depth() != 1 {
		t.Fatalf("expected exactly one pushed value, got depth %d", vm.depth())
	}
	top := vm.top()
	if len(top) != 1 || top[0] != 9 {
		t.Fatalf("got top %x want [9]", top)
	}
}

func TestVMDisabledOpcodeAlwaysFails(t *testing.T) {
	vm := NewVM(nil, nil)
	err := vm.Execute([]byte{byte(OpCat)})
	if err == nil {
		t.Fatal("expected an error for a disabled opcode")
	}
}

func TestVMDisabledOpcodeFailsEvenInsideFalseBranch(t *testing.T) {
	raw := []byte{0x00, byte(OpIf), byte(OpCat), byte(OpEndIf)}
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err == nil {
		t.Fatal("expected a disabled opcode to fail unconditionally")
	}
}

func TestVMOversizedDataPushRejectedAtExecute(t *testing.T) {
	data := make([]byte, MaxScriptDataSize+1)
	raw := append([]byte{byte(OpPushData2), byte(len(data) & 0xFF), byte(len(data) >> 8)}, data...)
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err == nil {
		t.Fatal("expected an error for a push exceeding the maximum data size")
	}
}

func TestVMStackManipulation2Rot(t *testing.T) {
	// Push 1..6, then OP_2ROT should move the 3rd pair to the top: [3,4,5,6,1,2]
	raw := []byte{
		0x01, 0x01, 0x01, 0x02, 0x01, 0x03,
		0x01, 0x04, 0x01, 0x05, 0x01, 0x06,
		byte(Op2Rot),
	}
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err != nil {
		t.Fatal(err)
	}
	want := []byte{3, 4, 5, 6, 1, 2}
	if vm.depth() != len(want) {
		t.Fatalf("got depth %d want %d", vm.depth(), len(want))
	}
	for i, w := range want {
		v, err := vm.peekAt(len(want) - 1 - i)
		if err != nil {
			t.Fatal(err)
		}
		if len(v) != 1 || v[0] != w {
			t.Fatalf("position %d: got %x want %d", i, v, w)
		}
	}
}

func TestVMPickAndRollIndexing(t *testing.T) {
	// Stack after pushes: [10, 20, 30] (30 on top). OP_PICK 1 copies 20 to
	// the top without consuming the original; OP_ROLL 1 removes it instead.
	pick := []byte{0x01, 10, 0x01, 20, 0x01, 30, 0x01, 1, byte(OpPick)}
	vm := NewVM(nil, nil)
	if err := vm.Execute(pick); err != nil {
		t.Fatal(err)
	}
	if vm.depth() != 4 {
		t.Fatalf("got depth %d want 4", vm.depth())
	}
	if top := vm.top(); len(top) != 1 || top[0] != 20 {
		t.Fatalf("OP_PICK: got top %x want [20]", top)
	}

	roll := []byte{0x01, 10, 0x01, 20, 0x01, 30, 0x01, 1, byte(OpRoll)}
	vm2 := NewVM(nil, nil)
	if err := vm2.Execute(roll); err != nil {
		t.Fatal(err)
	}
	if vm2.depth() != 3 {
		t.Fatalf("got depth %d want 3", vm2.depth())
	}
	if top := vm2.top(); len(top) != 1 || top[0] != 20 {
		t.Fatalf("OP_ROLL: got top %x want [20]", top)
	}
	remaining, err := vm2.peekAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0] != 30 {
		t.Fatalf("OP_ROLL left wrong element behind: got %x want [30]", remaining)
	}
}

func TestVMNumericComparisonOps(t *testing.T) {
	raw := []byte{0x01, 5, 0x01, 10, byte(OpLessThan)}
	vm := NewVM(nil, nil)
	if err := vm.Execute(raw); err != nil {
		t.Fatal(err)
	}
	if !vm.Success() {
		t.Fatal("expected 5 < 10 to be true")
	}
}

func TestVMCheckMultiSigOffByOneDummyPop(t *testing.T) {
	// OP_CHECKMULTISIG expects: dummy, sig1, sigcount=1, key1, key2, keycount=2
	sig := []byte{0x01}
	key1 := []byte{0x02}
	key2 := []byte{0x03}
	dummy := []byte{0x00}

	raw := []byte{byte(len(dummy))}
	raw = append(raw, dummy...)
	raw = append(raw, byte(len(sig)))
	raw = append(raw, sig...)
	raw = append(raw, 0x01, 0x01) // sig count = 1
	raw = append(raw, byte(len(key1)))
	raw = append(raw, key1...)
	raw = append(raw, byte(len(key2)))
	raw = append(raw, key2...)
	raw = append(raw, 0x01, 0x02) // key count = 2
	raw = append(raw, byte(OpCheckMultiSig))

	vm := NewVM(nil, StaticChecker(true))
	if err := vm.Execute(raw); err != nil {
		t.Fatal(err)
	}
	if !vm.Success() {
		t.Fatal("expected OP_CHECKMULTISIG to succeed with a satisfying checker")
	}
}

func TestVMCheckMultiSigMissingDummyIsError(t *testing.T) {
	// Only one signature and one key pushed with matching counts, but no
	// leading dummy element — must surface an error, not a false failure.
	sig := []byte{0x01}
	key := []byte{0x02}

	raw := []byte{byte(len(sig))}
	raw = append(raw, sig...)
	raw = append(raw, 0x01, 0x01) // sig count = 1
	raw = append(raw, byte(len(key)))
	raw = append(raw, key...)
	raw = append(raw, 0x01, 0x01) // key count = 1
	raw = append(raw, byte(OpCheckMultiSig))

	vm := NewVM(nil, StaticChecker(true))
	if err := vm.Execute(raw); err == nil {
		t.Fatal("expected an error for a missing dummy element")
	}
}

func TestVMVerifyFailureIsScriptFailureNotError(t *testing.T) {
	raw := []byte{0x00, byte(OpVerify)}
	vm := NewVM(nil, nil)
	err := vm.Execute(raw)
	if err == nil {
		t.Fatal("expected OP_VERIFY to fail on a falsy top")
	}
	if _, ok := err.(*ScriptFailure); !ok {
		t.Fatalf("got %T want *ScriptFailure", err)
	}
}
