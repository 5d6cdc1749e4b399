package feature

import (
	"fmt"
	"math"

	"github.com/gpureshape/layer/il"
)

// ExportStabilityChecker implements ShaderFeature: before every store of a
// floating-point value to a resource or buffer, it injects a NaN/Inf guard
// that exports a diagnostic record instead of letting an unstable value
// reach memory silently. Grounded on
// original_source/Source/Features/ExportStability/Backend/Source/Feature.cpp's
// Install/Inject pair — Install reserves the export stream id, Inject
// walks every function splitting the block at each qualifying store.
//
// Matrix- and vector-typed stores are not instrumented (the source's
// Feature.cpp carries the same TODO); only scalar TypeFP values are
// checked.
type ExportStabilityChecker struct {
	exportID  uint32
	installed bool
}

// NewExportStabilityChecker returns a checker that tags every exported
// diagnostic record with exportID — the streamer's per-export-ID stream
// this feature's output is routed through (spec §4.4).
func NewExportStabilityChecker(exportID uint32) *ExportStabilityChecker {
	return &ExportStabilityChecker{exportID: exportID}
}

func (c *ExportStabilityChecker) Name() string { return "export-stability" }

// Install reserves the export stream id. In the source this also
// registers the stream's schema with the host; here the id is supplied by
// the caller (the streamer owns id allocation), so Install only marks the
// checker ready.
func (c *ExportStabilityChecker) Install() error {
	c.installed = true
	return nil
}

// Inject walks every function in prog, instrumenting each store of a
// scalar floating-point value with a NaN/Inf guard.
func (c *ExportStabilityChecker) Inject(prog *il.Program) (int, error) {
	if !c.installed {
		return 0, fmt.Errorf("feature: export-stability Install must run before Inject")
	}

	boolType := prog.Types.Intern(il.Type{Kind: il.TypeBool})
	injected := 0
	for i := range prog.Functions {
		n := c.injectFunction(prog, &prog.Functions[i], boolType)
		injected += n
	}
	return injected, nil
}

// injectFunction instruments fn, returning the number of sites touched.
// It snapshots the function's original block ids up front: new blocks the
// injector appends (resume/oob pairs) must never themselves be revisited.
func (c *ExportStabilityChecker) injectFunction(prog *il.Program, fn *il.Function, boolType il.TypeID) int {
	defs := collectDefinitions(fn)

	originalIDs := make([]il.BlockID, len(fn.Blocks))
	for i, bb := range fn.Blocks {
		originalIDs[i] = bb.ID
	}

	injected := 0
	for _, id := range originalIDs {
		workID := id
		from := 0 // a resume block starts with the store just guarded; scan past it
		for {
			blk := fn.Block(workID)
			site, found := findCandidate(prog, &il.BasicBlock{ID: blk.ID, Instructions: blk.Instructions[from:]}, defs)
			if !found {
				break
			}
			site.index += from
			workID = c.splitAndInject(prog, fn, workID, site, boolType)
			from = 1
			injected++
		}
	}
	return injected
}

// candidateSite describes one store instruction this feature must guard.
type candidateSite struct {
	index int
	value il.ValueID
	vtype il.TypeID
	src   il.Source
}

// collectDefinitions maps every SSA value in fn to the instruction that
// produced it, so a store's operand can be traced back to its type and,
// for OpKernelValue producers, its constant.
func collectDefinitions(fn *il.Function) map[il.ValueID]il.Instruction {
	defs := make(map[il.ValueID]il.Instruction)
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions {
			if inst.Result != il.InvalidValue {
				defs[inst.Result] = inst
			}
		}
	}
	return defs
}

// findCandidate returns the first not-yet-instrumented fp-valued store in
// blk, skipping stores whose value is a compile-time-stable FP constant
// (il.Program.FoldFPConstant) since those can never trip the guard at
// runtime.
func findCandidate(prog *il.Program, blk *il.BasicBlock, defs map[il.ValueID]il.Instruction) (candidateSite, bool) {
	for idx, inst := range blk.Instructions {
		var value il.ValueID
		switch inst.Op {
		case il.OpStore, il.OpResourceStore:
			value = inst.Operands[1]
		default:
			continue
		}

		def, ok := defs[value]
		if !ok {
			continue
		}
		vtype := prog.Types.Get(def.Type)
		if vtype.Kind != il.TypeFP {
			continue
		}
		if def.Op == il.OpKernelValue {
			if unstable, ok := prog.FoldFPConstant(def.Literal); ok && !unstable {
				continue
			}
		}

		return candidateSite{index: idx, value: value, vtype: def.Type, src: inst.Source}, true
	}
	return candidateSite{}, false
}

// splitAndInject splits blockID at site.index, moving the instrumented
// instruction and everything after it into a new "resume" block, then
// rebuilds blockID's tail as: NaN/Inf test, conditional branch to a fresh
// "oob" block (which exports a diagnostic record and branches back) or
// straight to resume. Returns the resume block's id so the caller can
// continue scanning it for further candidates.
func (c *ExportStabilityChecker) splitAndInject(prog *il.Program, fn *il.Function, blockID il.BlockID, site candidateSite, boolType il.TypeID) il.BlockID {
	blk := fn.Block(blockID)
	tail := append([]il.Instruction(nil), blk.Instructions[site.index:]...)
	blk.Instructions = blk.Instructions[:site.index]

	b := il.NewBuilderForProgram(prog, fn, blockID)
	resumeID := b.NewBlock()
	fn.Block(resumeID).Instructions = tail
	oobID := b.NewBlock()

	src := site.src
	b.SetBlock(blockID)
	isNaN := b.Binary(il.OpCompareNE, site.value, site.value, boolType, src)
	posInf := b.FPConstant(site.vtype, math.Inf(1), src)
	negInf := b.FPConstant(site.vtype, math.Inf(-1), src)
	isPosInf := b.Binary(il.OpCompareEQ, site.value, posInf, boolType, src)
	isNegInf := b.Binary(il.OpCompareEQ, site.value, negInf, boolType, src)
	isInf := b.Binary(il.OpOr, isPosInf, isNegInf, boolType, src)
	unstable := b.Binary(il.OpOr, isNaN, isInf, boolType, src)
	b.BranchConditional(unstable, oobID, resumeID, src)

	b.SetBlock(oobID)
	b.Export(c.exportID, []il.ValueID{isNaN, isInf, site.value}, src)
	b.Branch(resumeID, src)

	return resumeID
}

var _ ShaderFeature = (*ExportStabilityChecker)(nil)
