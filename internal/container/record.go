// Package container implements the trace file format surrounding the
// core re-encoder: header, option block, per-CPU section index, and
// the page streams the Chunk Driver reads from and writes to
// (spec.md §6, §4.7 of the expanded design).
package container

import "github.com/behrlich/tracesplit/internal/interfaces"

// Record is an immutable view of one ring-buffer record. It is an
// alias for interfaces.Record so container's Reader/Writer/Memory
// types satisfy interfaces.InputTrace/OutputTrace without a separate
// conversion step.
type Record = interfaces.Record
