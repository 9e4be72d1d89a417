package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ExecutionTrace is the canonical, deterministic record of an orchestrator run.
//
// Invariants:
//   - Captures the library hash, the root component and an ordered list of events.
//   - Contains logical facts only: no timestamps, instance UUIDs, pointers or
//     error strings.
//   - Ordering is independent of worker count and goroutine scheduling.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() using a fully-specified ordering.
//   - JSON serialization uses a custom marshaler to fix field order and omit
//     absent optional fields.
//
// The trace is observational only and must never affect execution behavior.
type ExecutionTrace struct {
	LibraryHash string  `json:"libraryHash"`
	Root        string  `json:"root"`
	Events      []Event `json:"events"`
}

// EventKind is the stable, canonical discriminator for Event.
//
// The string values are part of the trace's canonical bytes; do not rename.
type EventKind string

const (
	EventInstanceCreated   EventKind = "InstanceCreated"
	EventConnectorSignaled EventKind = "ConnectorSignaled"
	EventNodeFired         EventKind = "NodeFired"
	EventConnectorEmitted  EventKind = "ConnectorEmitted"
	EventOutputEmitted     EventKind = "OutputEmitted"
)

// Event is a single logical transition.
//
// Instance is the instance path ("root", "root/child", ...). Node names the
// node inside that instance's component. Signals is the signal mask a fired
// cell observed. Cause links the event to its origin: the component name for
// InstanceCreated, and the emitting "instance:connector" for routed signals.
type Event struct {
	Kind     EventKind `json:"kind"`
	Cycle    int       `json:"cycle"`
	Instance string    `json:"instance,omitempty"`
	Node     string    `json:"node,omitempty"`
	Signals  uint32    `json:"signals,omitempty"`
	Cause    string    `json:"cause,omitempty"`
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.LibraryHash == "" {
		return errors.New("libraryHash is required")
	}
	if t.Root == "" {
		return errors.New("root is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Cycle < 0 {
			return fmt.Errorf("events[%d].cycle must be >= 0", i)
		}
		if e.Instance == "" {
			return fmt.Errorf("events[%d].instance is required for kind %q", i, e.Kind)
		}
		if e.Kind != EventInstanceCreated && e.Node == "" {
			return fmt.Errorf("events[%d].node is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts the trace into its canonical form.
//
// Events are stably sorted by (cycle, instance, kindOrder, node, cause, signals).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.Cycle != b.Cycle {
			return a.Cycle < b.Cycle
		}
		if a.Instance != b.Instance {
			return a.Instance < b.Instance
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		return a.Signals < b.Signals
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventInstanceCreated:
		return 10
	case EventConnectorSignaled:
		return 20
	case EventNodeFired:
		return 30
	case EventConnectorEmitted:
		return 40
	case EventOutputEmitted:
		return 50
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := ExecutionTrace{LibraryHash: t.LibraryHash, Root: t.Root}
	copyTrace.Events = make([]Event, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the hex sha256 of the canonical JSON bytes. Two runs of the
// same library with the same signals have equal hashes for any worker count.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Count returns the number of events of the given kind.
func (t ExecutionTrace) Count(kind EventKind) int {
	n := 0
	for _, e := range t.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// MarshalJSON ensures canonical field ordering and omission rules.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.LibraryHash == "" {
		return nil, errors.New("libraryHash is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"libraryHash\":")
	writeString(&buf, t.LibraryHash)
	buf.WriteString(",\"root\":")
	writeString(&buf, t.Root)

	buf.WriteString(",\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	// kind (always first), then cycle
	buf.WriteString("\"kind\":")
	writeString(&buf, string(e.Kind))
	buf.WriteString(",\"cycle\":")
	buf.WriteString(strconv.Itoa(e.Cycle))

	if e.Instance != "" {
		buf.WriteString(",\"instance\":")
		writeString(&buf, e.Instance)
	}
	if e.Node != "" {
		buf.WriteString(",\"node\":")
		writeString(&buf, e.Node)
	}
	if e.Signals != 0 {
		buf.WriteString(",\"signals\":")
		buf.WriteString(strconv.FormatUint(uint64(e.Signals), 10))
	}
	if e.Cause != "" {
		buf.WriteString(",\"cause\":")
		writeString(&buf, e.Cause)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
