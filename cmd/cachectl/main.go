// Command cachectl inspects and manages an on-disk shader cache file
// produced by compiler.ShaderCache, the way vk-gen operates on a
// vk.xml specification: a small flag-parsed tool driving the package's
// exported on-disk helpers rather than a separate re-implementation of
// the cache format.
//
// Usage:
//
//	cachectl -cache shaders.cache stats
//	cachectl -cache shaders.cache list
//	cachectl -cache shaders.cache clear
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gpureshape/layer/compiler"
)

func main() {
	cachePath := flag.String("cache", "shaders.cache", "Path to the shader cache file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cachectl -cache <path> <stats|list|clear>")
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "stats":
		err = runStats(*cachePath)
	case "list":
		err = runList(*cachePath)
	case "clear":
		err = runClear(*cachePath)
	default:
		fmt.Fprintf(os.Stderr, "cachectl: unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "cachectl: %v\n", err)
		os.Exit(1)
	}
}

func runStats(path string) error {
	entries, err := compiler.InspectFile(path)
	if err != nil {
		return err
	}
	var totalBytes int
	for _, e := range entries {
		totalBytes += e.BytecodeBytes
	}
	fmt.Printf("entries: %d\n", len(entries))
	fmt.Printf("bytecode bytes: %d\n", totalBytes)
	return nil
}

func runList(path string) error {
	entries, err := compiler.InspectFile(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("feature_version=%d content_hash=%d flags=%#x bytecode_bytes=%d\n",
			e.Key.FeatureVersionUID, e.Key.ContentHash, e.Flags, e.BytecodeBytes)
	}
	return nil
}

func runClear(path string) error {
	if err := compiler.ClearFile(path); err != nil {
		return err
	}
	fmt.Println("cache cleared")
	return nil
}
