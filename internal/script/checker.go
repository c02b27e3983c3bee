package script

// SignatureChecker verifies a DER-encoded signature against a public key
// and the subscript in force: the raw script bytes from
// last_code_separator_index to the end. The VM does not remove signature
// bytes from the subscript and does not SIGHASH-hash it; any hashing is
// up to the implementation. OP_CHECKSIG* call out to this
// interface rather than implementing ECDSA directly; BTCECChecker
// supplies a concrete implementation, tests typically use a stub.
type SignatureChecker interface {
	CheckSig(signature, pubKey, subscript []byte) bool
}

// StaticChecker always returns a fixed verdict, regardless of its
// arguments. Useful for exercising OP_CHECKSIG's stack plumbing in tests
// without a real key/signature pair.
type StaticChecker bool

func (c StaticChecker) CheckSig(signature, pubKey, subscript []byte) bool {
	return bool(c)
}
