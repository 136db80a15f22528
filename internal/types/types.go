// Package types holds the structural representation of C-like types.
//
// Types live in a Table and are addressed by TypeID. Every type carries a
// reference count; a type is freed, together with the sub-types it owns,
// only by the Release call that drops the last reference.
package types

import "fmt"

// TypeID addresses a type slot inside a Table.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the type constructors.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBasic
	KindArray
	KindPointer
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBasic:
		return "basic"
	case KindArray:
		return "array"
	case KindPointer:
		return "pointer"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Storage is the storage class of a basic type.
type Storage uint8

const (
	StorageNone Storage = iota
	StorageExtern
	StorageStatic
)

func (s Storage) String() string {
	switch s {
	case StorageExtern:
		return "extern"
	case StorageStatic:
		return "static"
	default:
		return ""
	}
}

// Qual is a set of cv-qualifiers.
type Qual uint8

const (
	QualConst Qual = 1 << iota
	QualVolatile
)

func (q Qual) String() string {
	switch q {
	case QualConst:
		return "const"
	case QualVolatile:
		return "volatile"
	case QualConst | QualVolatile:
		return "const volatile"
	default:
		return ""
	}
}

// Sign is the declared signedness of an integer type.
type Sign uint8

const (
	SignUnknown Sign = iota
	SignUnsigned
	SignSigned
)

func (s Sign) String() string {
	switch s {
	case SignUnsigned:
		return "unsigned"
	case SignSigned:
		return "signed"
	default:
		return ""
	}
}

// Spec is the type specifier of a basic type.
type Spec uint8

const (
	SpecVoid Spec = iota
	SpecChar
	SpecShort
	SpecInt
	SpecLong
	SpecLongLong
	SpecStruct
	SpecUnion
	SpecEnum
)

func (s Spec) String() string {
	switch s {
	case SpecVoid:
		return "void"
	case SpecChar:
		return "char"
	case SpecShort:
		return "short"
	case SpecInt:
		return "int"
	case SpecLong:
		return "long"
	case SpecLongLong:
		return "long long"
	case SpecStruct:
		return "struct"
	case SpecUnion:
		return "union"
	case SpecEnum:
		return "enum"
	default:
		return fmt.Sprintf("Spec(%d)", s)
	}
}

// IsAggregate reports whether the specifier introduces a field list.
func (s Spec) IsAggregate() bool {
	return s == SpecStruct || s == SpecUnion
}

// Basic describes the non-structural part of a basic type.
type Basic struct {
	Storage Storage
	Qual    Qual
	Sign    Sign
	Spec    Spec
}

// StructBody is the body of a struct or union: Opaque or Fields.
type StructBody interface {
	isStructBody()
}

// Opaque is a forward-referenced aggregate known only by its tag.
type Opaque struct {
	Name string
}

// Fields is a complete aggregate with an owned field list.
type Fields struct {
	Tag  string
	Head FieldID
}

func (Opaque) isStructBody() {}
func (Fields) isStructBody() {}

// FieldID addresses a field record.
type FieldID uint32

// NoField terminates a field list.
const NoField FieldID = 0

// Field is one member of a struct or union.
type Field struct {
	Name   string
	Hash   uint64
	Type   TypeID
	Offset uint32
	Next   FieldID
}

// ParamID addresses a parameter record.
type ParamID uint32

// NoParam terminates a parameter list; an empty list means no parameters.
const NoParam ParamID = 0

// Param is one function parameter.
type Param struct {
	Name string
	Type TypeID
	Next ParamID
}

// Type is a single slot of the table.
type Type struct {
	Kind Kind
	Basic
	Body   StructBody // struct/union only
	Elem   TypeID     // array element, pointee or function result
	Count  uint32     // array length
	Params ParamID    // function parameters
	Size   uint32
	Align  uint32
	Refs   int32
}

// IsArithmetic reports whether values of the type take part in arithmetic.
func (t *Type) IsArithmetic() bool {
	if t == nil || t.Kind != KindBasic {
		return false
	}
	switch t.Spec {
	case SpecChar, SpecShort, SpecInt, SpecLong, SpecLongLong, SpecEnum:
		return true
	default:
		return false
	}
}
