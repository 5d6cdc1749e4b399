package il

// ConstantKind tags the variant held by a Constant.
type ConstantKind uint8

const (
	ConstBool ConstantKind = iota
	ConstInt
	ConstFP
	ConstNull
	ConstStruct
	ConstVector
	ConstArray
)

// ConstantID indexes into a Program's constant map.
type ConstantID uint32

// Constant is a tagged union over the IL constant pool. Every constant is
// linked to the Type it was declared with, mirroring both DXIL's constant
// table and SPIR-V's OpConstant family.
type Constant struct {
	Kind ConstantKind
	Type TypeID

	Bool bool
	Int  int64
	FP   float64

	// ConstStruct / ConstVector / ConstArray
	Elements []ConstantID
}

// ConstantMap interns constants the same way TypeMap interns types.
type ConstantMap struct {
	constants []Constant
}

// NewConstantMap returns an empty, ready-to-use ConstantMap.
func NewConstantMap() *ConstantMap {
	return &ConstantMap{}
}

// Add appends c and returns its ConstantID. Unlike types, constants are not
// deduplicated: two structurally identical constants always get two
// distinct ConstantIDs.
func (m *ConstantMap) Add(c Constant) ConstantID {
	id := ConstantID(len(m.constants))
	m.constants = append(m.constants, c)
	return id
}

// Get returns the constant stored at id.
func (m *ConstantMap) Get(id ConstantID) Constant {
	return m.constants[id]
}

// Len returns the number of constants in the pool.
func (m *ConstantMap) Len() int { return len(m.constants) }
