package il

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestTypeMapInterning(t *testing.T) {
	m := NewTypeMap()
	a := m.Intern(Type{Kind: TypeInt, IntWidth: 32, IntSigned: true})
	b := m.Intern(Type{Kind: TypeInt, IntWidth: 32, IntSigned: true})
	if a != b {
		t.Fatalf("expected structurally equal types to intern to the same id, got %d and %d", a, b)
	}
	c := m.Intern(Type{Kind: TypeInt, IntWidth: 32, IntSigned: false})
	if a == c {
		t.Fatalf("expected signed/unsigned int32 to intern to distinct ids")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 interned types, got %d", m.Len())
	}
}

func TestConstantMapNoDedup(t *testing.T) {
	m := NewConstantMap()
	id1 := m.Add(Constant{Kind: ConstInt, Int: 1})
	id2 := m.Add(Constant{Kind: ConstInt, Int: 1})
	if id1 == id2 {
		t.Fatalf("constants must not be deduplicated: each Add returns a fresh id")
	}
}

func TestBuilderEmitsInOrder(t *testing.T) {
	prog := NewProgram()
	i32 := prog.Types.Intern(Type{Kind: TypeInt, IntWidth: 32, IntSigned: true})
	fn := &Function{Name: "main", EntryPoint: true, Blocks: []BasicBlock{{ID: 0}}}

	b := NewBuilder(fn, 0)
	v1 := b.Binary(OpAdd, 1, 2, i32, Source{CodeOffset: 10})
	b.Export(0, []ValueID{v1}, Source{CodeOffset: 12})
	b.Branch(0, Source{CodeOffset: 14})

	bb := fn.Block(0)
	if len(bb.Instructions) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(bb.Instructions))
	}
	if bb.Instructions[0].Op != OpAdd || bb.Instructions[1].Op != OpExport || bb.Instructions[2].Op != OpBranch {
		t.Fatalf("unexpected instruction ordering: %+v", bb.Instructions)
	}
	if bb.Instructions[1].ExportID != 0 {
		t.Fatalf("expected export id 0, got %d", bb.Instructions[1].ExportID)
	}
}

func TestBuilderNewBlockIsolation(t *testing.T) {
	fn := &Function{Blocks: []BasicBlock{{ID: 0}}}
	b := NewBuilder(fn, 0)
	other := b.NewBlock()
	if other == 0 {
		t.Fatalf("expected a fresh non-zero block id")
	}
	b.Store(1, 2, Source{})
	if len(fn.Block(0).Instructions) != 0 {
		t.Fatalf("store should land in the new block, not block 0")
	}
	if len(fn.Block(other).Instructions) != 1 {
		t.Fatalf("expected 1 instruction in the new block")
	}
}

func TestIsStableFP32(t *testing.T) {
	cases := []struct {
		v      float32
		stable bool
	}{
		{1.0, true},
		{0.0, true},
		{-1.5, true},
		{math32.Inf(1), false},
		{math32.NaN(), false},
	}
	for _, c := range cases {
		if got := IsStableFP32(c.v); got != c.stable {
			t.Errorf("IsStableFP32(%v) = %v, want %v", c.v, got, c.stable)
		}
	}
}
