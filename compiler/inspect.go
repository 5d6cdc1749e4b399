package compiler

import "os"

// EntryInfo is a read-only summary of one on-disk shader cache entry,
// exposed to tooling (cmd/cachectl) that inspects a cache file without
// opening it through a live ShaderCache.
type EntryInfo struct {
	Key           CacheKey
	Flags         uint32
	BytecodeBytes int
}

// InspectFile decodes the shader cache file at path and returns a summary
// of every entry, without ever holding the bytecode itself in the
// returned slice. A missing file returns (nil, nil), matching Load's
// "cold cache" tolerance.
func InspectFile(path string) ([]EntryInfo, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries, err := decodeCache(data)
	if err != nil {
		return nil, err
	}
	infos := make([]EntryInfo, len(entries))
	for i, e := range entries {
		infos[i] = EntryInfo{Key: e.Key, Flags: e.Flags, BytecodeBytes: len(e.Bytecode)}
	}
	return infos, nil
}

// ClearFile truncates the shader cache file at path to an empty,
// zero-entry cache in the current on-disk format (rather than deleting
// the file, so a concurrently-running process's open file handle still
// sees a well-formed, just-empty cache rather than ENOENT).
func ClearFile(path string) error {
	return os.WriteFile(path, encodeCache(nil), 0o644)
}
