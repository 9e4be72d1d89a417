package engine

import "strings"

// NodeFlags is the per-node runtime state bitset.
type NodeFlags uint8

const (
	// FlagFired is set between a node firing and the end of the same step.
	FlagFired NodeFlags = 1 << iota
	// FlagStaged marks a node queued for the next step; a node is staged at
	// most once per step.
	FlagStaged
	// FlagSpent marks a one-shot cell that has already fired.
	FlagSpent
)

func (f NodeFlags) Has(flag NodeFlags) bool { return f&flag != 0 }

func (f NodeFlags) String() string {
	var parts []string
	if f.Has(FlagFired) {
		parts = append(parts, "fired")
	}
	if f.Has(FlagStaged) {
		parts = append(parts, "staged")
	}
	if f.Has(FlagSpent) {
		parts = append(parts, "spent")
	}
	return strings.Join(parts, "|")
}
