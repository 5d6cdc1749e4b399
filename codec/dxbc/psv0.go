package dxbc

import "encoding/binary"

// BindingKind identifies a synthesized resource binding's register class.
type BindingKind uint8

const (
	BindingUAV BindingKind = iota
	BindingSRV
	BindingCBV
)

// Binding is one synthesized PSV0 resource binding: a register-class/index
// pair in the shader's own binding space, disjoint from anything the
// original shader declared (§4.1 "State machine (re-emit)").
type Binding struct {
	Kind  BindingKind
	Index uint32
}

// Bindings describes the resource bindings an instrumented shader needs
// beyond what it originally declared. Exactly one call to SetBindings
// populates this per re-emit; Emit synthesizes a PSV0 chunk from it.
type Bindings struct {
	ExportStreamCount int // one UAV per export stream the shader writes to
	UserUAVCount      int // one UAV per user-allocated shader-data resource
}

// synthesizePSV0 lays out the fixed two-SRV (resource + sampler PRMT),
// three-CBV (shader-data, descriptor-data, event-data) binding set plus
// the caller-supplied UAV counts, and serializes it as a flat
// (kind,index) table. The real PSV0 chunk also carries per-shader-stage
// runtime info (thread group size, signature element masks, and so on)
// that this layer never reads or regenerates; only the binding table
// feature injectors actually need is synthesized here.
func synthesizePSV0(b Bindings) []byte {
	var bindings []Binding
	uavIndex := uint32(0)
	for i := 0; i < b.ExportStreamCount; i++ {
		bindings = append(bindings, Binding{Kind: BindingUAV, Index: uavIndex})
		uavIndex++
	}
	for i := 0; i < b.UserUAVCount; i++ {
		bindings = append(bindings, Binding{Kind: BindingUAV, Index: uavIndex})
		uavIndex++
	}
	bindings = append(bindings,
		Binding{Kind: BindingSRV, Index: 0}, // resource PRMT
		Binding{Kind: BindingSRV, Index: 1}, // sampler PRMT
		Binding{Kind: BindingCBV, Index: 0}, // shader-data
		Binding{Kind: BindingCBV, Index: 1}, // descriptor-data
		Binding{Kind: BindingCBV, Index: 2}, // event-data
	)

	buf := make([]byte, 4+len(bindings)*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(bindings)))
	for i, bd := range bindings {
		off := 4 + i*8
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(bd.Kind))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], bd.Index)
	}
	return buf
}
