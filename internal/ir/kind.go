package ir

import "fmt"

// Kind enumerates node operations.
type Kind uint8

const (
	KindInvalid Kind = iota

	// no operands
	KindLiteral
	KindCall

	// one operand
	KindReturn
	KindRef
	KindDeref
	KindNeg
	KindBitNot
	KindLogNot

	// two operands
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMod
	KindShl
	KindShr
	KindLt
	KindLe
	KindGt
	KindGe
	KindEq
	KindNe
	KindBitAnd
	KindBitOr
	KindBitXor
	KindLogAnd
	KindLogOr
	KindStore // *left = right

	kindCount
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindLiteral: "lit",
	KindCall:    "call",
	KindReturn:  "return",
	KindRef:     "ref",
	KindDeref:   "deref",
	KindNeg:     "neg",
	KindBitNot:  "bitnot",
	KindLogNot:  "not",
	KindAdd:     "add",
	KindSub:     "sub",
	KindMul:     "mul",
	KindDiv:     "div",
	KindMod:     "mod",
	KindShl:     "shl",
	KindShr:     "shr",
	KindLt:      "lt",
	KindLe:      "le",
	KindGt:      "gt",
	KindGe:      "ge",
	KindEq:      "eq",
	KindNe:      "ne",
	KindBitAnd:  "bitand",
	KindBitOr:   "bitor",
	KindBitXor:  "bitxor",
	KindLogAnd:  "and",
	KindLogOr:   "or",
	KindStore:   "store",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind resolves the short name printed by String.
func ParseKind(s string) (Kind, bool) {
	for k := KindLiteral; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindInvalid, false
}

// Arity returns how many operand edges a node of kind k carries.
// Every traversal of the graph dispatches on this function.
func Arity(k Kind) int {
	switch k {
	case KindLiteral, KindCall:
		return 0
	case KindReturn, KindRef, KindDeref, KindNeg, KindBitNot, KindLogNot:
		return 1
	case KindAdd, KindSub, KindMul, KindDiv, KindMod, KindShl, KindShr,
		KindLt, KindLe, KindGt, KindGe, KindEq, KindNe,
		KindBitAnd, KindBitOr, KindBitXor, KindLogAnd, KindLogOr, KindStore:
		return 2
	default:
		panic(fmt.Sprintf("ir: arity of %s", k))
	}
}

// Valid reports whether k names a real operation.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// HasSideEffect reports whether nodes of kind k must be sequenced through
// the previous edge chain.
func (k Kind) HasSideEffect() bool {
	return k == KindCall || k == KindStore || k == KindReturn
}
