package dtp

// InfiniteGap is the max_sdu_gap sentinel meaning "any gap is
// deliverable" (spec.md §3: "∞ == any gap allowed").
const InfiniteGap = ^uint64(0)

// FCType selects the sender/receiver flow-control policy.
type FCType int

const (
	FCNone FCType = iota
	FCWindow
)

// FCConfig is the window flow-control sub-configuration (spec §3).
type FCConfig struct {
	Type          FCType
	MaxCwqLen     int
	InitialCredit uint64
}

// DTCPConfig is the optional reliability/flow-control overlay
// configuration.
type DTCPConfig struct {
	FlowControl bool
	RtxControl  bool
	FC          FCConfig
}

// Config is a flow's immutable-after-init configuration (spec §3).
type Config struct {
	DTCPPresent     bool
	InOrderDelivery bool
	MaxSDUGap       uint64
	DTCP            DTCPConfig
}
