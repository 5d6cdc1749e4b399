// Package feature holds the instrumentation feature checkers that inject
// diagnostic IL into a parsed shader program. Each feature is a trait
// implementation against a small, explicit vtable rather than a node in a
// class hierarchy (spec §9 Design Notes: "interface abstraction per
// feature ... but drop inheritance hierarchies; features are trait
// implementations, not derived classes").
package feature

import "github.com/gpureshape/layer/il"

// ShaderFeature is the vtable every instrumentation feature implements.
// Install reserves whatever host-side state the feature needs (an export
// stream id, a descriptor slot, ...) before any shader is compiled;
// Inject rewrites one already-parsed Program, returning the number of
// injection sites it touched so the caller can log/skip a no-op feature.
type ShaderFeature interface {
	// Name identifies the feature in logs and the combined-hash key.
	Name() string

	// Install reserves this feature's host-side resources. Called once
	// per feature, before Inject runs against any program.
	Install() error

	// Inject rewrites prog in place, adding whatever IL the feature
	// needs. Returns the number of sites instrumented.
	Inject(prog *il.Program) (int, error)
}

// DiscoveryListener is notified as the bridge discovers inspector
// connections, mirroring the source's discovery hook table.
type DiscoveryListener interface {
	OnServerDiscovered(guid [16]byte)
	OnServerLost(guid [16]byte)
}

// Generator produces the IL a feature injects, kept separate from
// ShaderFeature so a feature can reuse one generator across many
// programs (the source's per-feature "emitter" helper).
type Generator interface {
	Generate(b *il.Builder, src il.Source) il.ValueID
}
