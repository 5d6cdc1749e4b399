// Package spirv implements the SPIR-V container codec: a flat stream of
// 32-bit words (header + instructions), parsed into the shared il package
// and re-emitted either byte-identical (no transformation) or patched with
// injected instructions.
package spirv

// Magic is the fixed SPIR-V magic number every valid module starts with.
const Magic uint32 = 0x07230203

// Opcode is the 16-bit operation code packed into the low half of a SPIR-V
// instruction's first word. Values match the public SPIR-V specification
// for the subset of opcodes this codec understands; anything else is
// preserved as an opaque passthrough instruction.
type Opcode uint16

const (
	OpNop                   Opcode = 0
	OpSource                Opcode = 3
	OpName                  Opcode = 5
	OpExtInstImport         Opcode = 11
	OpExtInst               Opcode = 12
	OpMemoryModel           Opcode = 14
	OpEntryPoint            Opcode = 15
	OpExecutionMode         Opcode = 16
	OpCapability            Opcode = 17
	OpTypeVoid              Opcode = 19
	OpTypeBool              Opcode = 20
	OpTypeInt               Opcode = 21
	OpTypeFloat             Opcode = 22
	OpTypeVector            Opcode = 23
	OpTypeArray             Opcode = 28
	OpTypeStruct            Opcode = 30
	OpTypePointer           Opcode = 32
	OpTypeFunction          Opcode = 33
	OpConstantTrue          Opcode = 41
	OpConstantFalse         Opcode = 42
	OpConstant              Opcode = 43
	OpFunction              Opcode = 54
	OpFunctionParameter     Opcode = 55
	OpFunctionEnd           Opcode = 56
	OpVariable              Opcode = 59
	OpLoad                  Opcode = 61
	OpStore                 Opcode = 62
	OpAccessChain           Opcode = 65
	OpDecorate              Opcode = 71
	OpIAdd                  Opcode = 128
	OpFAdd                  Opcode = 129
	OpISub                  Opcode = 130
	OpFSub                  Opcode = 131
	OpIMul                  Opcode = 132
	OpFMul                  Opcode = 133
	OpIEqual                Opcode = 170
	OpShiftRightLogical     Opcode = 194
	OpBitwiseOr             Opcode = 197
	OpBitwiseXor            Opcode = 198
	OpBitwiseAnd            Opcode = 199
	OpPhi                   Opcode = 245
	OpLabel                 Opcode = 248
	OpBranch                Opcode = 249
	OpBranchConditional     Opcode = 250
	OpReturn                Opcode = 253
	OpReturnValue           Opcode = 254
	OpAtomicIAdd            Opcode = 234
	OpAtomicOr              Opcode = 241
)

// ExportExtInstSet is the name imported via OpExtInstImport for the
// layer's own non-semantic export instruction, the same mechanism real
// tooling uses for NonSemantic.Shader.DebugInfo-style extended
// instruction sets: it lets the codec add a vendor instruction without
// needing a new core opcode.
const ExportExtInstSet = "NonSemantic.GpuReshape.Export"

// ExportInstNumber is the instruction number within ExportExtInstSet that
// marks "export this operand list under this export id".
const ExportInstNumber = 1
