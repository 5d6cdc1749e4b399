package feature

import (
	"testing"

	"github.com/gpureshape/layer/il"
)

func newTestProgram() (*il.Program, *il.Function) {
	prog := il.NewProgram()
	fn := il.Function{
		Name: "main",
		Blocks: []il.BasicBlock{
			{ID: 0},
		},
	}
	prog.Functions = append(prog.Functions, fn)
	return prog, &prog.Functions[0]
}

func TestInjectSplitsBlockAroundFPStore(t *testing.T) {
	prog, fn := newTestProgram()
	fp32 := prog.Types.Intern(il.Type{Kind: il.TypeFP, FPWidth: 32})
	ptrType := prog.Types.Intern(il.Type{Kind: il.TypePointer, Pointee: fp32})

	b := il.NewBuilderForProgram(prog, fn, 0)
	value := b.Load(1, fp32, il.Source{})
	b.Store(2, value, il.Source{})
	_ = ptrType

	checker := NewExportStabilityChecker(7)
	if err := checker.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	injected, err := checker.Inject(prog)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if injected != 1 {
		t.Fatalf("expected 1 injection site, got %d", injected)
	}

	fn = &prog.Functions[0]
	if len(fn.Blocks) != 3 {
		t.Fatalf("expected pre/oob/resume blocks, got %d blocks", len(fn.Blocks))
	}

	pre := fn.Blocks[0]
	last := pre.Instructions[len(pre.Instructions)-1]
	if last.Op != il.OpBranchConditional {
		t.Fatalf("expected pre block to end in a conditional branch, got %v", last.Op)
	}

	oob := fn.Blocks[2]
	var sawExport bool
	for _, inst := range oob.Instructions {
		if inst.Op == il.OpExport {
			sawExport = true
			if inst.ExportID != 7 {
				t.Fatalf("expected export id 7, got %d", inst.ExportID)
			}
		}
	}
	if !sawExport {
		t.Fatal("expected oob block to contain an OpExport instruction")
	}

	resume := fn.Blocks[1]
	var sawStore bool
	for _, inst := range resume.Instructions {
		if inst.Op == il.OpStore {
			sawStore = true
		}
	}
	if !sawStore {
		t.Fatal("expected resume block to still contain the original store")
	}
}

func TestInjectSkipsKnownStableConstant(t *testing.T) {
	prog, fn := newTestProgram()
	fp32 := prog.Types.Intern(il.Type{Kind: il.TypeFP, FPWidth: 32})

	b := il.NewBuilderForProgram(prog, fn, 0)
	stable := b.FPConstant(fp32, 1.0, il.Source{})
	b.Store(2, stable, il.Source{})

	checker := NewExportStabilityChecker(1)
	_ = checker.Install()
	injected, err := checker.Inject(prog)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if injected != 0 {
		t.Fatalf("expected constant-folded store to be skipped, got %d injections", injected)
	}
	if len(prog.Functions[0].Blocks) != 1 {
		t.Fatalf("expected no new blocks, got %d", len(prog.Functions[0].Blocks))
	}
}

func TestInjectIgnoresNonFPStores(t *testing.T) {
	prog, fn := newTestProgram()
	i32 := prog.Types.Intern(il.Type{Kind: il.TypeInt, IntWidth: 32, IntSigned: true})

	b := il.NewBuilderForProgram(prog, fn, 0)
	intVal := b.Constant(i32, 42, il.Source{})
	b.Store(2, intVal, il.Source{})

	checker := NewExportStabilityChecker(1)
	_ = checker.Install()
	injected, err := checker.Inject(prog)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if injected != 0 {
		t.Fatalf("expected int store to be left alone, got %d injections", injected)
	}
}

func TestInjectFailsWithoutInstall(t *testing.T) {
	prog, _ := newTestProgram()
	checker := NewExportStabilityChecker(1)
	if _, err := checker.Inject(prog); err == nil {
		t.Fatal("expected Inject to fail before Install")
	}
}
