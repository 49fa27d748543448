// Package split implements the Split Predicate and Chunk Driver
// (spec.md §4.4, §4.5): the orchestration layer that walks an input
// trace's records, routes them to Per-CPU Page Builders, and decides
// when a chunk ends.
package split

import (
	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/wire"
)

// InputTrace is the adapter the Chunk Driver reads records through
// (spec.md §6, "Trace container — input side").
type InputTrace = interfaces.InputTrace

// OutputTrace is the adapter the Repeat Controller hands finished
// chunks to (spec.md §6, "Trace container — output side").
type OutputTrace = interfaces.OutputTrace

// FileState enumerates the layouts a container can declare itself as.
type FileState = interfaces.FileState

const (
	FileStateNormal     = interfaces.FileStateNormal
	FileStateCPULatency = interfaces.FileStateCPULatency
)

// wireOrder returns the Order the driver's encoders should use for a
// given input trace's declared endianness.
func wireOrder(in InputTrace) wire.Order {
	return wire.NewOrder(in.BigEndian())
}
