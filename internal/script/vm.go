// Package script implements the transaction locking-script language: a
// chunk parser for push encodings and a stack-machine executor for the
// opcode set, including arithmetic on a sign-magnitude integer encoding,
// crypto hash primitives, and a pluggable signature-verification hook.
package script

import (
	"crypto/sha1"
	"crypto/sha256"

	"github.com/keato/chainpeer/internal/metrics"
	"golang.org/x/crypto/ripemd160"
)

// VM holds the mutable state of a single script execution: the data
// stack, alt stack, if-stack, and the running OP_CODESEPARATOR anchor.
// It exists only for the duration of one Execute call.
type VM struct {
	dataStack []([]byte)
	altStack  []([]byte)
	ifStack   []bool

	lastCodeSeparator int
	checker           SignatureChecker
	script            []byte
}

// NewVM creates a VM that will use checker for OP_CHECKSIG* operations.
// raw is stored as the script in force; each Execute call replaces it
// with the script being run, which is what OP_CHECKSIG* take their
// subscript slice from.
func NewVM(raw []byte, checker SignatureChecker) *VM {
	return &VM{checker: checker, script: raw}
}

// Execute parses and runs chunks against the VM's stacks. It returns nil
// when the script runs to completion (Success then reports whether the
// top of the stack unlocks), a *ScriptFailure when a failure opcode such
// as OP_VERIFY or OP_RETURN stops it, or a *ScriptError for a malformed
// script or VM invariant violation.
func (vm *VM) Execute(raw []byte) (err error) {
	defer func() { metrics.ScriptExecutions.WithLabelValues(executionOutcome(err)).Inc() }()

	chunks, err := Parse(raw)
	if err != nil {
		return err
	}
	vm.script = raw

	for _, chunk := range chunks {
		execute := !vm.ifStackHasFalse()

		if chunk.Kind == ChunkData {
			if len(chunk.Data) > MaxScriptDataSize {
				return &ScriptError{Msg: "data push exceeds maximum size"}
			}
			if !execute {
				continue
			}
			vm.push(chunk.Data)
			continue
		}

		if err := vm.step(chunk, execute); err != nil {
			return err
		}
	}
	return nil
}

// executionOutcome labels an Execute result for the ScriptExecutions
// metric: a clean run, a scripted refusal, or a malformed/invariant error.
func executionOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *ScriptFailure:
		return "script_failure"
	case *ScriptError:
		return "script_error"
	default:
		return "other"
	}
}

// Success reports whether the data stack's top element casts to true,
// the condition for a script to be considered "unlocked" after a
// failure-free run.
func (vm *VM) Success() bool {
	if len(vm.dataStack) == 0 {
		return false
	}
	return castToBool(vm.top())
}

func (vm *VM) ifStackHasFalse() bool {
	for _, b := range vm.ifStack {
		if !b {
			return true
		}
	}
	return false
}

func (vm *VM) push(b []byte)  { vm.dataStack = append(vm.dataStack, b) }
func (vm *VM) top() []byte    { return vm.dataStack[len(vm.dataStack)-1] }
func (vm *VM) depth() int     { return len(vm.dataStack) }

func (vm *VM) pop() ([]byte, error) {
	if len(vm.dataStack) == 0 {
		return nil, &ScriptError{Msg: "pop on empty data stack"}
	}
	v := vm.dataStack[len(vm.dataStack)-1]
	vm.dataStack = vm.dataStack[:len(vm.dataStack)-1]
	return v, nil
}

// peekAt returns the n-th element from the top (0 = top) without
// removing it.
func (vm *VM) peekAt(n int) ([]byte, error) {
	if n < 0 || n >= len(vm.dataStack) {
		return nil, &ScriptError{Msg: "stack index out of range"}
	}
	return vm.dataStack[len(vm.dataStack)-1-n], nil
}

// removeAt removes and returns the n-th element from the top (0 = top).
func (vm *VM) removeAt(n int) ([]byte, error) {
	if n < 0 || n >= len(vm.dataStack) {
		return nil, &ScriptError{Msg: "stack index out of range"}
	}
	idx := len(vm.dataStack) - 1 - n
	v := vm.dataStack[idx]
	vm.dataStack = append(vm.dataStack[:idx], vm.dataStack[idx+1:]...)
	return v, nil
}

// insertAt inserts v so that it becomes the n-th element from the top
// (0 = top) after insertion.
func (vm *VM) insertAt(n int, v []byte) error {
	if n < 0 || n > len(vm.dataStack) {
		return &ScriptError{Msg: "stack index out of range"}
	}
	idx := len(vm.dataStack) - n
	vm.dataStack = append(vm.dataStack, nil)
	copy(vm.dataStack[idx+1:], vm.dataStack[idx:])
	vm.dataStack[idx] = v
	return nil
}

func requireDepth(vm *VM, n int, opName string) error {
	if vm.depth() < n {
		return &ScriptError{Msg: opName + " on too small stack"}
	}
	return nil
}

// step executes a single opcode chunk. Disabled opcodes and flow control
// are checked regardless of execute; everything else is skipped when
// execute is false.
func (vm *VM) step(chunk Chunk, execute bool) error {
	op := chunk.Op

	if disabledOpcodes[op] {
		return &ScriptError{Msg: "script contains disabled opcode"}
	}

	switch op {
	case OpIf:
		if !execute {
			vm.ifStack = append(vm.ifStack, false)
			return nil
		}
		v, err := vm.pop()
		if err != nil {
			return &ScriptError{Msg: "OP_IF on empty stack"}
		}
		vm.ifStack = append(vm.ifStack, castToBool(v))
		return nil

	case OpNotIf:
		if !execute {
			vm.ifStack = append(vm.ifStack, false)
			return nil
		}
		v, err := vm.pop()
		if err != nil {
			return &ScriptError{Msg: "OP_NOTIF on empty stack"}
		}
		vm.ifStack = append(vm.ifStack, !castToBool(v))
		return nil

	case OpElse:
		if len(vm.ifStack) == 0 {
			return &ScriptError{Msg: "OP_ELSE on empty if-stack"}
		}
		top := len(vm.ifStack) - 1
		vm.ifStack[top] = !vm.ifStack[top]
		return nil

	case OpEndIf:
		if len(vm.ifStack) == 0 {
			return &ScriptError{Msg: "OP_ENDIF on empty if-stack"}
		}
		vm.ifStack = vm.ifStack[:len(vm.ifStack)-1]
		return nil
	}

	if !execute {
		return nil
	}

	return vm.execOpcode(op, chunk)
}

// execOpcode runs everything beyond flow control, only ever called while
// execute is true.
func (vm *VM) execOpcode(op Opcode, chunk Chunk) error {
	switch {
	case op == Op1Negate:
		vm.push(intToScriptNum(-1))
		return nil
	case op >= Op1 && op <= Op16:
		vm.push(intToScriptNum(int64(op) - int64(Op1) + 1))
		return nil
	case nopFamily[op]:
		return nil
	}

	switch op {
	case OpVerify:
		v, err := vm.pop()
		if err != nil {
			return &ScriptError{Msg: "OP_VERIFY on empty stack"}
		}
		if !castToBool(v) {
			return &ScriptFailure{Msg: "OP_VERIFY failed"}
		}
		return nil

	case OpReturn:
		return &ScriptFailure{Msg: "script used OP_RETURN"}
	}

	if handled, err := vm.execStackOp(op); handled {
		return err
	}
	if handled, err := vm.execBitwiseOp(op); handled {
		return err
	}
	if handled, err := vm.execNumericOp(op); handled {
		return err
	}
	if handled, err := vm.execCryptoOp(op, chunk); handled {
		return err
	}

	return &ScriptError{Msg: "unrecognized opcode"}
}

func (vm *VM) execStackOp(op Opcode) (bool, error) {
	switch op {
	case OpToAltStack:
		v, err := vm.pop()
		if err != nil {
			return true, &ScriptError{Msg: "OP_TOALTSTACK on empty stack"}
		}
		vm.altStack = append(vm.altStack, v)
		return true, nil

	case OpFromAltStack:
		if len(vm.altStack) == 0 {
			return true, &ScriptError{Msg: "OP_FROMALTSTACK on empty alt stack"}
		}
		v := vm.altStack[len(vm.altStack)-1]
		vm.altStack = vm.altStack[:len(vm.altStack)-1]
		vm.push(v)
		return true, nil

	case Op2Drop:
		if err := requireDepth(vm, 2, "OP_2DROP"); err != nil {
			return true, err
		}
		vm.pop()
		vm.pop()
		return true, nil

	case Op2Dup:
		if err := requireDepth(vm, 2, "OP_2DUP"); err != nil {
			return true, err
		}
		a, _ := vm.peekAt(1)
		b, _ := vm.peekAt(0)
		vm.push(a)
		vm.push(b)
		return true, nil

	case Op3Dup:
		if err := requireDepth(vm, 3, "OP_3DUP"); err != nil {
			return true, err
		}
		a, _ := vm.peekAt(2)
		b, _ := vm.peekAt(1)
		c, _ := vm.peekAt(0)
		vm.push(a)
		vm.push(b)
		vm.push(c)
		return true, nil

	case Op2Over:
		if err := requireDepth(vm, 4, "OP_2OVER"); err != nil {
			return true, err
		}
		a, _ := vm.peekAt(3)
		b, _ := vm.peekAt(2)
		vm.push(a)
		vm.push(b)
		return true, nil

	case Op2Rot:
		if err := requireDepth(vm, 6, "OP_2ROT"); err != nil {
			return true, err
		}
		a, _ := vm.removeAt(5)
		b, _ := vm.removeAt(4)
		vm.push(a)
		vm.push(b)
		return true, nil

	case Op2Swap:
		if err := requireDepth(vm, 4, "OP_2SWAP"); err != nil {
			return true, err
		}
		a, _ := vm.removeAt(3)
		b, _ := vm.removeAt(2)
		vm.push(a)
		vm.push(b)
		return true, nil

	case OpIfDup:
		if err := requireDepth(vm, 1, "OP_IFDUP"); err != nil {
			return true, err
		}
		top, _ := vm.peekAt(0)
		if castToBool(top) {
			vm.push(top)
		}
		return true, nil

	case OpDepth:
		vm.push(intToScriptNum(int64(vm.depth())))
		return true, nil

	case OpDrop:
		if err := requireDepth(vm, 1, "OP_DROP"); err != nil {
			return true, err
		}
		vm.pop()
		return true, nil

	case OpDup:
		if err := requireDepth(vm, 1, "OP_DUP"); err != nil {
			return true, err
		}
		top, _ := vm.peekAt(0)
		vm.push(top)
		return true, nil

	case OpNip:
		if err := requireDepth(vm, 2, "OP_NIP"); err != nil {
			return true, err
		}
		_, err := vm.removeAt(1)
		return true, err

	case OpOver:
		if err := requireDepth(vm, 2, "OP_OVER"); err != nil {
			return true, err
		}
		v, _ := vm.peekAt(1)
		vm.push(v)
		return true, nil

	case OpPick, OpRoll:
		if err := requireDepth(vm, 2, "OP_PICK/OP_ROLL"); err != nil {
			return true, err
		}
		nb, err := vm.pop()
		if err != nil {
			return true, err
		}
		n64, err := scriptNumToInt(nb)
		if err != nil {
			return true, err
		}
		n := int(n64)
		if n < 0 || n > vm.depth()-1 {
			return true, &ScriptError{Msg: "OP_PICK/OP_ROLL index out of range"}
		}
		if op == OpPick {
			v, err := vm.peekAt(n)
			if err != nil {
				return true, err
			}
			vm.push(v)
		} else {
			v, err := vm.removeAt(n)
			if err != nil {
				return true, err
			}
			vm.push(v)
		}
		return true, nil

	case OpRot:
		if err := requireDepth(vm, 3, "OP_ROT"); err != nil {
			return true, err
		}
		v, _ := vm.removeAt(2)
		vm.push(v)
		return true, nil

	case OpSwap:
		if err := requireDepth(vm, 2, "OP_SWAP"); err != nil {
			return true, err
		}
		v, _ := vm.removeAt(1)
		vm.push(v)
		return true, nil

	case OpTuck:
		if err := requireDepth(vm, 2, "OP_TUCK"); err != nil {
			return true, err
		}
		top, _ := vm.peekAt(0)
		if err := vm.insertAt(2, top); err != nil {
			return true, err
		}
		return true, nil

	case OpSize:
		if err := requireDepth(vm, 1, "OP_SIZE"); err != nil {
			return true, err
		}
		top, _ := vm.peekAt(0)
		vm.push(intToScriptNum(int64(len(top))))
		return true, nil
	}

	return false, nil
}

func (vm *VM) execBitwiseOp(op Opcode) (bool, error) {
	switch op {
	case OpEqual:
		if err := requireDepth(vm, 2, "OP_EQUAL"); err != nil {
			return true, err
		}
		a, _ := vm.pop()
		b, _ := vm.pop()
		vm.push(boolBytes(bytesEqual(a, b)))
		return true, nil

	case OpEqualVerify:
		if err := requireDepth(vm, 2, "OP_EQUALVERIFY"); err != nil {
			return true, err
		}
		a, _ := vm.pop()
		b, _ := vm.pop()
		if !bytesEqual(a, b) {
			return true, &ScriptFailure{Msg: "OP_EQUALVERIFY failed"}
		}
		return true, nil
	}
	return false, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (vm *VM) execNumericOp(op Opcode) (bool, error) {
	switch op {
	case Op1Add, Op1Sub, OpNegate, OpAbs, OpNot, Op0NotEqual:
		if err := requireDepth(vm, 1, "single-numeric opcode"); err != nil {
			return true, err
		}
		b, _ := vm.pop()
		v, err := scriptNumToInt(b)
		if err != nil {
			return true, err
		}
		switch op {
		case Op1Add:
			v++
		case Op1Sub:
			v--
		case OpNegate:
			v = -v
		case OpAbs:
			if v < 0 {
				v = -v
			}
		case OpNot:
			if v == 0 {
				v = 1
			} else {
				v = 0
			}
		case Op0NotEqual:
			if v == 0 {
				v = 0
			} else {
				v = 1
			}
		}
		vm.push(intToScriptNum(v))
		return true, nil

	case OpAdd, OpSub, OpBoolAnd, OpBoolOr, OpNumEqual, OpNumEqualVerify,
		OpNumNotEqual, OpLessThan, OpGreaterThan, OpLessThanOrEqual,
		OpGreaterThanOrEqual, OpMin, OpMax:
		if err := requireDepth(vm, 2, "double-numeric opcode"); err != nil {
			return true, err
		}
		b2, _ := vm.pop()
		b1, _ := vm.pop()
		v2, err := scriptNumToInt(b2)
		if err != nil {
			return true, err
		}
		v1, err := scriptNumToInt(b1)
		if err != nil {
			return true, err
		}

		var res int64
		switch op {
		case OpAdd:
			res = v1 + v2
		case OpSub:
			res = v1 - v2
		case OpBoolAnd:
			res = boolInt(v1 != 0 && v2 != 0)
		case OpBoolOr:
			res = boolInt(v1 != 0 || v2 != 0)
		case OpNumEqual, OpNumEqualVerify:
			res = boolInt(v1 == v2)
		case OpNumNotEqual:
			res = boolInt(v1 != v2)
		case OpLessThan:
			res = boolInt(v1 < v2)
		case OpGreaterThan:
			res = boolInt(v1 > v2)
		case OpLessThanOrEqual:
			res = boolInt(v1 <= v2)
		case OpGreaterThanOrEqual:
			res = boolInt(v1 >= v2)
		case OpMin:
			if v1 < v2 {
				res = v1
			} else {
				res = v2
			}
		case OpMax:
			if v1 > v2 {
				res = v1
			} else {
				res = v2
			}
		}

		if op == OpNumEqualVerify {
			if res == 0 {
				return true, &ScriptFailure{Msg: "OP_NUMEQUALVERIFY failed"}
			}
			return true, nil
		}
		vm.push(intToScriptNum(res))
		return true, nil

	case OpWithin:
		if err := requireDepth(vm, 3, "OP_WITHIN"); err != nil {
			return true, err
		}
		maxB, _ := vm.pop()
		minB, _ := vm.pop()
		valB, _ := vm.pop()
		maxV, err := scriptNumToInt(maxB)
		if err != nil {
			return true, err
		}
		minV, err := scriptNumToInt(minB)
		if err != nil {
			return true, err
		}
		val, err := scriptNumToInt(valB)
		if err != nil {
			return true, err
		}
		vm.push(boolBytes(val >= minV && val < maxV))
		return true, nil
	}
	return false, nil
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (vm *VM) execCryptoOp(op Opcode, chunk Chunk) (bool, error) {
	switch op {
	case OpRipemd160:
		if err := requireDepth(vm, 1, "OP_RIPEMD160"); err != nil {
			return true, err
		}
		v, _ := vm.pop()
		vm.push(ripemd160Sum(v))
		return true, nil

	case OpSha1:
		if err := requireDepth(vm, 1, "OP_SHA1"); err != nil {
			return true, err
		}
		v, _ := vm.pop()
		sum := sha1.Sum(v)
		vm.push(sum[:])
		return true, nil

	case OpSha256:
		if err := requireDepth(vm, 1, "OP_SHA256"); err != nil {
			return true, err
		}
		v, _ := vm.pop()
		sum := sha256.Sum256(v)
		vm.push(sum[:])
		return true, nil

	case OpHash160:
		if err := requireDepth(vm, 1, "OP_HASH160"); err != nil {
			return true, err
		}
		v, _ := vm.pop()
		sum := sha256.Sum256(v)
		vm.push(ripemd160Sum(sum[:]))
		return true, nil

	case OpHash256:
		if err := requireDepth(vm, 1, "OP_HASH256"); err != nil {
			return true, err
		}
		v, _ := vm.pop()
		first := sha256.Sum256(v)
		second := sha256.Sum256(first[:])
		vm.push(second[:])
		return true, nil

	case OpCodeSeparator:
		vm.lastCodeSeparator = chunk.StartIndex + 1
		return true, nil

	case OpCheckSig, OpCheckSigVerify:
		if err := requireDepth(vm, 2, "OP_CHECKSIG*"); err != nil {
			return true, err
		}
		pubKey, _ := vm.pop()
		sig, _ := vm.pop()
		subscript := vm.subscript()
		valid := vm.checker != nil && vm.checker.CheckSig(sig, pubKey, subscript)
		if op == OpCheckSig {
			vm.push(boolBytes(valid))
		} else if !valid {
			return true, &ScriptFailure{Msg: "OP_CHECKSIGVERIFY failed"}
		}
		return true, nil

	case OpCheckMultiSig, OpCheckMultiSigVerify:
		valid, err := vm.execCheckMultiSig()
		if err != nil {
			return true, err
		}
		if op == OpCheckMultiSig {
			vm.push(boolBytes(valid))
		} else if !valid {
			return true, &ScriptFailure{Msg: "OP_CHECKMULTISIGVERIFY failed"}
		}
		return true, nil
	}
	return false, nil
}

// execCheckMultiSig pops, in order, key_count, keys..., sig_count,
// sigs..., and an extra dummy for the off-by-one bug, and requires every
// signature to match some subsequent key in order.
func (vm *VM) execCheckMultiSig() (bool, error) {
	nKeysB, err := vm.pop()
	if err != nil {
		return false, &ScriptError{Msg: "OP_CHECKMULTISIG* on empty stack"}
	}
	nKeys64, err := scriptNumToInt(nKeysB)
	if err != nil {
		return false, err
	}
	nKeys := int(nKeys64)
	if nKeys < 0 || nKeys > 20 {
		return false, &ScriptError{Msg: "OP_CHECKMULTISIG* key count out of range"}
	}
	keys := make([][]byte, nKeys)
	for i := 0; i < nKeys; i++ {
		k, err := vm.pop()
		if err != nil {
			return false, &ScriptError{Msg: "OP_CHECKMULTISIG* missing key"}
		}
		keys[i] = k
	}

	nSigsB, err := vm.pop()
	if err != nil {
		return false, &ScriptError{Msg: "OP_CHECKMULTISIG* missing signature count"}
	}
	nSigs64, err := scriptNumToInt(nSigsB)
	if err != nil {
		return false, err
	}
	nSigs := int(nSigs64)
	if nSigs < 0 || nSigs > nKeys {
		return false, &ScriptError{Msg: "OP_CHECKMULTISIG* signature count out of range"}
	}
	sigs := make([][]byte, nSigs)
	for i := 0; i < nSigs; i++ {
		s, err := vm.pop()
		if err != nil {
			return false, &ScriptError{Msg: "OP_CHECKMULTISIG* missing signature"}
		}
		sigs[i] = s
	}

	// The reference client's OP_CHECKMULTISIG pops one extra value due to
	// an off-by-one bug in the original design, kept for wire
	// compatibility.
	if _, err := vm.pop(); err != nil {
		return false, &ScriptError{Msg: "OP_CHECKMULTISIG* missing dummy element"}
	}

	if vm.checker == nil {
		return false, nil
	}

	subscript := vm.subscript()
	keyIdx := 0
	for _, sig := range sigs {
		matched := false
		for keyIdx < len(keys) {
			k := keys[keyIdx]
			keyIdx++
			if vm.checker.CheckSig(sig, k, subscript) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// subscript returns the portion of the script in force for signature
// checking: everything from the last OP_CODESEPARATOR to the end.
func (vm *VM) subscript() []byte {
	if vm.lastCodeSeparator >= len(vm.script) {
		return nil
	}
	return vm.script[vm.lastCodeSeparator:]
}

func ripemd160Sum(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}
