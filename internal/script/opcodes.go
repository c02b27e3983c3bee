package script

// Opcode is a single byte value in the script opcode space.
type Opcode byte

// Push-data opcodes and boundaries.
const (
	OpPushData1 Opcode = 0x4C
	OpPushData2 Opcode = 0x4D
	OpPushData4 Opcode = 0x4E
	Op1Negate   Opcode = 0x4F
	OpReserved  Opcode = 0x50
	Op1         Opcode = 0x51
	Op16        Opcode = 0x60
	OpNop       Opcode = 0x61
)

// Flow control.
const (
	OpIf     Opcode = 0x63
	OpNotIf  Opcode = 0x64
	OpElse   Opcode = 0x67
	OpEndIf  Opcode = 0x68
	OpVerify Opcode = 0x69
	OpReturn Opcode = 0x6A
)

// Stack operations.
const (
	OpToAltStack   Opcode = 0x6B
	OpFromAltStack Opcode = 0x6C
	Op2Drop        Opcode = 0x6D
	Op2Dup         Opcode = 0x6E
	Op3Dup         Opcode = 0x6F
	Op2Over        Opcode = 0x70
	Op2Rot         Opcode = 0x71
	Op2Swap        Opcode = 0x72
	OpIfDup        Opcode = 0x73
	OpDepth        Opcode = 0x74
	OpDrop         Opcode = 0x75
	OpDup          Opcode = 0x76
	OpNip          Opcode = 0x77
	OpOver         Opcode = 0x78
	OpPick         Opcode = 0x79
	OpRoll         Opcode = 0x7A
	OpRot          Opcode = 0x7B
	OpSwap         Opcode = 0x7C
	OpTuck         Opcode = 0x7D
	OpSize         Opcode = 0x82
)

// Disabled opcodes — fatal unconditionally, even inside a non-executing
// branch.
const (
	OpCat     Opcode = 0x7E
	OpSubstr  Opcode = 0x7F
	OpLeft    Opcode = 0x80
	OpRight   Opcode = 0x81
	OpInvert  Opcode = 0x83
	OpAnd     Opcode = 0x84
	OpOr      Opcode = 0x85
	OpXor     Opcode = 0x86
	Op2Mul    Opcode = 0x8D
	Op2Div    Opcode = 0x8E
	OpMul     Opcode = 0x95
	OpDiv     Opcode = 0x96
	OpMod     Opcode = 0x97
	OpLShift  Opcode = 0x98
	OpRShift  Opcode = 0x99
)

// Bitwise equality.
const (
	OpEqual       Opcode = 0x87
	OpEqualVerify Opcode = 0x88
)

// Numeric.
const (
	Op1Add               Opcode = 0x8B
	Op1Sub               Opcode = 0x8C
	OpNegate             Opcode = 0x8F
	OpAbs                Opcode = 0x90
	OpNot                Opcode = 0x91
	Op0NotEqual          Opcode = 0x92
	OpAdd                Opcode = 0x93
	OpSub                Opcode = 0x94
	OpBoolAnd            Opcode = 0x9A
	OpBoolOr             Opcode = 0x9B
	OpNumEqual           Opcode = 0x9C
	OpNumEqualVerify     Opcode = 0x9D
	OpNumNotEqual        Opcode = 0x9E
	OpLessThan           Opcode = 0x9F
	OpGreaterThan        Opcode = 0xA0
	OpLessThanOrEqual    Opcode = 0xA1
	OpGreaterThanOrEqual Opcode = 0xA2
	OpMin                Opcode = 0xA3
	OpMax                Opcode = 0xA4
	OpWithin             Opcode = 0xA5
)

// Crypto.
const (
	OpRipemd160      Opcode = 0xA6
	OpSha1           Opcode = 0xA7
	OpSha256         Opcode = 0xA8
	OpHash160        Opcode = 0xA9
	OpHash256        Opcode = 0xAA
	OpCodeSeparator  Opcode = 0xAB
	OpCheckSig       Opcode = 0xAC
	OpCheckSigVerify Opcode = 0xAD
	OpCheckMultiSig       Opcode = 0xAE
	OpCheckMultiSigVerify Opcode = 0xAF
)

// NOP family, explicitly enumerated because each is individually a no-op.
const (
	OpNop1  Opcode = 0xB0
	OpNop2  Opcode = 0xB1
	OpNop3  Opcode = 0xB2
	OpNop4  Opcode = 0xB3
	OpNop5  Opcode = 0xB4
	OpNop6  Opcode = 0xB5
	OpNop7  Opcode = 0xB6
	OpNop8  Opcode = 0xB7
	OpNop9  Opcode = 0xB8
	OpNop10 Opcode = 0xB9
)

var disabledOpcodes = map[Opcode]bool{
	OpCat: true, OpSubstr: true, OpLeft: true, OpRight: true, OpInvert: true,
	OpAnd: true, OpOr: true, OpXor: true, Op2Mul: true, Op2Div: true,
	OpMul: true, OpDiv: true, OpMod: true, OpLShift: true, OpRShift: true,
}

var nopFamily = map[Opcode]bool{
	OpNop: true, OpNop1: true, OpNop2: true, OpNop3: true, OpNop4: true,
	OpNop5: true, OpNop6: true, OpNop7: true, OpNop8: true, OpNop9: true,
	OpNop10: true,
}
