package compiler

// DriverHandle is an opaque token standing in for a native graphics
// driver object (a VkShaderModule, an ID3D12PipelineState, ...). This
// layer never dereferences one — it only threads the integer through to
// whatever issued it, the same way `core.ID` values are opaque handles
// into a `core.Registry` rather than raw pointers.
type DriverHandle uint64

// InvalidDriverHandle marks a compile result with no backing driver
// object yet (a cache hit that hasn't been submitted to a device, for
// instance).
const InvalidDriverHandle DriverHandle = 0
