package controller

import (
	"strings"

	"github.com/gpureshape/layer/compiler"
)

// PipelineType narrows a Filter to one kind of pipeline, or to every kind
// when set to PipelineTypeAny.
type PipelineType uint8

const (
	PipelineTypeAny PipelineType = iota
	PipelineTypeGraphics
	PipelineTypeCompute
	PipelineTypeRayTracing
)

// Filter matches pipelines by type and debug-name substring. A pipeline
// passes iff its type matches (or Type is PipelineTypeAny) and its debug
// name contains NameSubstring (or NameSubstring is empty).
type Filter struct {
	GUID          uint64
	Type          PipelineType
	NameSubstring string
	BitSet        compiler.FeatureBitSet
}

// Matches reports whether f applies to a pipeline of the given type and
// debug name.
func (f Filter) Matches(pipelineType PipelineType, debugName string) bool {
	if f.Type != PipelineTypeAny && f.Type != pipelineType {
		return false
	}
	if f.NameSubstring != "" && !strings.Contains(debugName, f.NameSubstring) {
		return false
	}
	return true
}

// effectiveBitSet ORs global, per-pipeline, per-shader instrumentation and
// every matching filter's bitset, per spec §4.3's feature-bit
// summarization rule.
func effectiveBitSet(global, perPipeline, perShader compiler.FeatureBitSet, filters []Filter, pipelineType PipelineType, debugName string) compiler.FeatureBitSet {
	eff := global | perPipeline | perShader
	for _, f := range filters {
		if f.Matches(pipelineType, debugName) {
			eff |= f.BitSet
		}
	}
	return eff
}
