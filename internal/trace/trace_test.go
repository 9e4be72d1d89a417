package trace

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := ExecutionTrace{
		LibraryHash: "lib-abc",
		Root:        "Main",
		Events: []Event{
			{Kind: EventNodeFired, Cycle: 2, Instance: "root", Node: "b", Signals: 1},
			{Kind: EventNodeFired, Cycle: 1, Instance: "root", Node: "in"},
			{Kind: EventConnectorEmitted, Cycle: 2, Instance: "root", Node: "out"},
		},
	}

	trace2 := ExecutionTrace{
		LibraryHash: "lib-abc",
		Root:        "Main",
		Events: []Event{
			{Kind: EventConnectorEmitted, Cycle: 2, Instance: "root", Node: "out"},
			{Kind: EventNodeFired, Cycle: 1, Instance: "root", Node: "in"},
			{Kind: EventNodeFired, Cycle: 2, Instance: "root", Node: "b", Signals: 1},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_CycleThenInstanceThenKind(t *testing.T) {
	tr := ExecutionTrace{
		LibraryHash: "lib",
		Root:        "Main",
		Events: []Event{
			{Kind: EventNodeFired, Cycle: 1, Instance: "root/child", Node: "a"},
			{Kind: EventConnectorSignaled, Cycle: 1, Instance: "root", Node: "in", Cause: "external"},
			{Kind: EventInstanceCreated, Cycle: 1, Instance: "root/child", Cause: "Child"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"libraryHash":"lib","root":"Main","events":[` +
		`{"kind":"ConnectorSignaled","cycle":1,"instance":"root","node":"in","cause":"external"},` +
		`{"kind":"InstanceCreated","cycle":1,"instance":"root/child","cause":"Child"},` +
		`{"kind":"NodeFired","cycle":1,"instance":"root/child","node":"a"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	tr := ExecutionTrace{
		LibraryHash: "lib",
		Root:        "Main",
		Events: []Event{
			{Kind: EventNodeFired, Cycle: 2, Instance: "root", Node: "b"},
			{Kind: EventNodeFired, Cycle: 1, Instance: "root", Node: "a"},
		},
	}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if tr.Events[0].Node != "b" {
		t.Fatalf("expected caller events untouched, got %+v", tr.Events)
	}
}

func TestHash_IgnoresInsertionOrder(t *testing.T) {
	tr1 := ExecutionTrace{
		LibraryHash: "g",
		Root:        "Main",
		Events: []Event{
			{Kind: EventOutputEmitted, Cycle: 3, Instance: "root", Node: "done"},
			{Kind: EventNodeFired, Cycle: 1, Instance: "root", Node: "a"},
		},
	}
	tr2 := ExecutionTrace{
		LibraryHash: "g",
		Root:        "Main",
		Events: []Event{
			{Kind: EventNodeFired, Cycle: 1, Instance: "root", Node: "a"},
			{Kind: EventOutputEmitted, Cycle: 3, Instance: "root", Node: "done"},
		},
	}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 || h1 == "" {
		t.Fatalf("expected equal non-empty hash, got %q != %q", h1, h2)
	}
}

func TestValidate_RejectsIncompleteEvents(t *testing.T) {
	cases := []ExecutionTrace{
		{Root: "Main"},
		{LibraryHash: "g"},
		{LibraryHash: "g", Root: "Main", Events: []Event{{Cycle: 1, Instance: "root", Node: "a"}}},
		{LibraryHash: "g", Root: "Main", Events: []Event{{Kind: EventNodeFired, Cycle: 1, Node: "a"}}},
		{LibraryHash: "g", Root: "Main", Events: []Event{{Kind: EventNodeFired, Cycle: 1, Instance: "root"}}},
	}
	for i, tr := range cases {
		if _, err := tr.CanonicalJSON(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestCanonicalJSON_DecodesBack(t *testing.T) {
	tr := ExecutionTrace{
		LibraryHash: "g",
		Root:        "Main",
		Events:      []Event{{Kind: EventNodeFired, Cycle: 4, Instance: "root", Node: "a", Signals: 5}},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	var decoded ExecutionTrace
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Root != "Main" || len(decoded.Events) != 1 || decoded.Events[0].Signals != 5 {
		t.Fatalf("unexpected decoded trace: %+v", decoded)
	}
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(cycle int) {
			defer wg.Done()
			r.Record(Event{Kind: EventNodeFired, Cycle: cycle, Instance: "root", Node: "a"})
		}(i)
	}
	wg.Wait()

	tr := r.Trace("g", "Main")
	if len(tr.Events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(tr.Events))
	}
	for i, e := range tr.Events {
		if e.Cycle != i {
			t.Fatalf("expected canonical cycle order, got %+v", tr.Events)
		}
	}
	if tr.Count(EventNodeFired) != 8 {
		t.Fatalf("expected Count to report 8")
	}
}

type panickySink struct{}

func (panickySink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	SafeRecord(panickySink{}, Event{Kind: EventNodeFired})
	SafeRecord(nil, Event{Kind: EventNodeFired})
	NopSink{}.Record(Event{})
}
