// Package engine executes component graphs in discrete clock cycles.
//
// It is split into:
//   - Instance: the mutable runtime state of one component (node flags,
//     signal masks, variable values and the staged/active/fired buffers).
//     An instance advances itself one cycle at a time via Step.
//   - Orchestrator: owns the component library, the root instance and every
//     lazily created child instance. It steps all active instances in
//     parallel, then routes connector emissions between parents and children
//     on a single goroutine, so results never depend on the worker count.
package engine
