package tracesplit

import "github.com/behrlich/tracesplit/internal/constants"

// Re-export wire-format defaults for public API consumers that
// fabricate fixtures without a real input trace.
const (
	DefaultPageSize = constants.DefaultPageSize
	DefaultLongSize = constants.DefaultLongSize
)
