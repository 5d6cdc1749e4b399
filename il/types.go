// Package il implements the shared intermediate representation that both
// shader binary codecs (DXBC/DXIL and SPIR-V) parse into and re-emit from.
//
// The type system, constant pool, and instruction set are format-agnostic:
// a feature injector written against this package never needs to know
// which container format produced the program it is transforming.
package il

import "fmt"

// TypeKind tags the variant held by a Type.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeBool
	TypeInt
	TypeFP
	TypePointer
	TypeArray
	TypeVector
	TypeMatrix
	TypeStruct
	TypeFunction
)

func (k TypeKind) String() string {
	switch k {
	case TypeVoid:
		return "void"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFP:
		return "fp"
	case TypePointer:
		return "ptr"
	case TypeArray:
		return "array"
	case TypeVector:
		return "vector"
	case TypeMatrix:
		return "matrix"
	case TypeStruct:
		return "struct"
	case TypeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// AddressSpace identifies where a pointer's pointee lives.
type AddressSpace uint8

const (
	AddressFunction AddressSpace = iota
	AddressPrivate
	AddressWorkgroup
	AddressUniform
	AddressStorage
	AddressPushConstant
)

// TypeID indexes into a Program's type map.
type TypeID uint32

// Type is a tagged union over the IL type system. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Type struct {
	Kind TypeKind

	// TypeInt
	IntWidth  uint8
	IntSigned bool

	// TypeFP
	FPWidth uint8

	// TypePointer
	Pointee TypeID
	Space   AddressSpace

	// TypeArray / TypeVector / TypeMatrix
	Elem         TypeID
	Count        uint32 // array length, vector component count, matrix column count
	MatrixRows   uint32 // only for TypeMatrix
	RuntimeSized bool   // array with no declared length (unbounded SRV/UAV)

	// TypeStruct
	Members []TypeID

	// TypeFunction
	Return TypeID
	Params []TypeID
}

// TypeMap interns types for a Program so structurally-equal types share
// one TypeID, the way both DXIL and SPIR-V containers already intern
// their own type tables.
type TypeMap struct {
	types []Type
	index map[string]TypeID
}

// NewTypeMap returns an empty, ready-to-use TypeMap.
func NewTypeMap() *TypeMap {
	return &TypeMap{index: make(map[string]TypeID)}
}

// Intern inserts t if an structurally-equal type is not already present,
// returning the canonical TypeID either way.
func (m *TypeMap) Intern(t Type) TypeID {
	key := typeKey(t)
	if id, ok := m.index[key]; ok {
		return id
	}
	id := TypeID(len(m.types))
	m.types = append(m.types, t)
	m.index[key] = id
	return id
}

// Get returns the type stored at id. Panics if id is out of range, which
// indicates a programmer error (a dangling TypeID), not malformed input —
// callers must validate TypeIDs at parse time before constructing them.
func (m *TypeMap) Get(id TypeID) Type {
	return m.types[id]
}

// Len returns the number of interned types.
func (m *TypeMap) Len() int { return len(m.types) }

func typeKey(t Type) string {
	switch t.Kind {
	case TypeInt:
		return fmt.Sprintf("i%d:%d:%v", t.Kind, t.IntWidth, t.IntSigned)
	case TypeFP:
		return fmt.Sprintf("f%d:%d", t.Kind, t.FPWidth)
	case TypePointer:
		return fmt.Sprintf("p%d:%d:%d", t.Kind, t.Pointee, t.Space)
	case TypeArray:
		return fmt.Sprintf("a%d:%d:%d:%v", t.Kind, t.Elem, t.Count, t.RuntimeSized)
	case TypeVector:
		return fmt.Sprintf("v%d:%d:%d", t.Kind, t.Elem, t.Count)
	case TypeMatrix:
		return fmt.Sprintf("m%d:%d:%d:%d", t.Kind, t.Elem, t.Count, t.MatrixRows)
	case TypeStruct:
		return fmt.Sprintf("s%d:%v", t.Kind, t.Members)
	case TypeFunction:
		return fmt.Sprintf("fn%d:%d:%v", t.Kind, t.Return, t.Params)
	default:
		return fmt.Sprintf("%d", t.Kind)
	}
}
