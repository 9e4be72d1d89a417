package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icl "upon/internal/cli"
	"upon/internal/runstore"
)

const roundTripYAML = `
root: Parent
components:
  - name: Child
    nodes:
      - {name: start, kind: connector_in}
      - {name: a}
      - {name: done, kind: connector_out}
    edges:
      - {from: start, to: a}
      - {from: a, to: done}
  - name: Parent
    nodes:
      - {name: in, kind: connector_in}
      - {name: p}
      - {name: go, kind: connector_out}
      - {name: child, kind: instance, component: Child}
      - {name: back, kind: connector_in}
      - {name: q}
      - {name: result, kind: connector_out}
    edges:
      - {from: in, to: p}
      - {from: p, to: go}
      - {from: go, to: child, kind: connection, connector: start}
      - {from: child, to: back, kind: connection, connector: done}
      - {from: back, to: q}
      - {from: q, to: result}
`

const loopYAML = `
components:
  - name: Loop
    nodes:
      - {name: in, kind: connector_in}
      - {name: a}
      - {name: b}
    edges:
      - {from: in, to: a}
      - {from: a, to: b}
      - {from: b, to: a}
`

const divYAML = `
components:
  - name: Div
    nodes:
      - {name: go, kind: connector_in}
      - {name: div, op: "div_assign:u8"}
      - {name: a, kind: variable, type: u8, value: "9"}
      - {name: zero, kind: variable, type: u8}
    edges:
      - {from: go, to: div}
      - {from: div, to: a, kind: operand, slot: 0}
      - {from: div, to: zero, kind: operand, slot: 1}
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func run(t *testing.T, args ...string) (icl.Result, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	res, err := icl.Run(context.Background(), append([]string{"--no-color"}, args...), &stdout, &stderr)
	return res, stdout.String(), err
}

var traceHashRe = regexp.MustCompile(`trace hash: ([0-9a-f]{64})`)

func TestRun_RoundTripPrintsOutputAndRecordsRun(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "lib.yaml"), roundTripYAML)

	res, out, err := run(t, "--workdir", workDir, "run", "lib.yaml", "--trace", "trace.json")
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)
	assert.Contains(t, out, "output result cycle=6")
	assert.Contains(t, out, "Parent succeeded: 6 cycles, 2 instances, 1 outputs")
	require.NotEmpty(t, res.RunID)
	assert.Contains(t, out, "run id: "+res.RunID)

	_, err = os.Stat(filepath.Join(workDir, "trace.json"))
	require.NoError(t, err)

	store, err := runstore.NewStore(workDir)
	require.NoError(t, err)
	rec, err := store.LoadRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSucceeded, rec.Status)
	assert.Equal(t, []string{"in"}, rec.Signals)
	assert.Equal(t, 6, rec.Cycles)

	m := traceHashRe.FindStringSubmatch(out)
	require.Len(t, m, 2)
	assert.Equal(t, m[1], rec.TraceHash)

	exported, err := os.ReadFile(filepath.Join(workDir, "trace.json"))
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(workDir, ".upon", "runs", res.RunID, "trace.json"))
	require.NoError(t, err)
	assert.Equal(t, string(stored), string(exported))
}

func TestRun_IdenticalInvocationsIdenticalTrace(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "lib.yaml"), roundTripYAML)

	args := []string{"--workdir", workDir, "run", "lib.yaml", "--no-store", "--trace", "trace.json", "--signal", "in", "--signal", "in"}
	_, out1, err := run(t, append(args, "--workers", "1")...)
	require.NoError(t, err)
	tr1, err := os.ReadFile(filepath.Join(workDir, "trace.json"))
	require.NoError(t, err)

	_, out2, err := run(t, append(args, "--workers", "8")...)
	require.NoError(t, err)
	tr2, err := os.ReadFile(filepath.Join(workDir, "trace.json"))
	require.NoError(t, err)

	assert.Equal(t, string(tr1), string(tr2))
	assert.Equal(t, out1, out2)
	assert.Contains(t, out1, "output result cycle=12")
	assert.NotContains(t, out1, "run id:")
}

func TestRun_CycleLimitIsRunFailure(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "loop.yaml"), loopYAML)

	res, out, err := run(t, "--workdir", workDir, "run", "loop.yaml", "--max-cycles", "20")
	require.Error(t, err)
	assert.Equal(t, icl.ExitRunFailure, res.ExitCode)
	assert.Contains(t, out, "Loop failed: 20 cycles")

	store, err := runstore.NewStore(workDir)
	require.NoError(t, err)
	f, ok, err := store.LoadFailure(res.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, runstore.FailureClassLimit, f.FailureClass)

	_, show, err := run(t, "--workdir", workDir, "runs", "show", res.RunID)
	require.NoError(t, err)
	assert.Contains(t, show, "status:     failed")
	assert.Contains(t, show, "failure:    limit (CycleLimit)")
}

func TestRun_OperationErrorIsRunFailure(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "div.yaml"), divYAML)

	res, _, err := run(t, "--workdir", workDir, "run", "div.yaml")
	require.Error(t, err)
	assert.Equal(t, icl.ExitRunFailure, res.ExitCode)
	assert.Contains(t, err.Error(), "divide by zero")
}

func TestRun_ConfigFileApplies(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "loop.yaml"), loopYAML)
	writeFile(t, filepath.Join(workDir, "upon.toml"), "max_cycles = 7\nstore_dir = \"\"\n")

	res, out, err := run(t, "--workdir", workDir, "run", "loop.yaml")
	require.Error(t, err)
	assert.Equal(t, icl.ExitRunFailure, res.ExitCode)
	assert.Contains(t, out, "Loop failed: 7 cycles")
	assert.Empty(t, res.RunID, "store disabled by config")

	// Flags win over the file.
	_, out, err = run(t, "--workdir", workDir, "run", "loop.yaml", "--max-cycles", "3")
	require.Error(t, err)
	assert.Contains(t, out, "Loop failed: 3 cycles")
}

func TestRun_ExitCodes(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "lib.yaml"), roundTripYAML)
	writeFile(t, filepath.Join(workDir, "broken.yaml"), "components: [{name: A, nodes: [{name: a}], edges: [{from: a, to: a}]}]\n")
	writeFile(t, filepath.Join(workDir, "bad", "upon.toml"), "workers = \"many\"\n")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown flag", []string{"--workdir", workDir, "run", "lib.yaml", "--frobnicate"}, icl.ExitInvalidInvocation},
		{"missing argument", []string{"--workdir", workDir, "run"}, icl.ExitInvalidInvocation},
		{"unknown command", []string{"--workdir", workDir, "launch"}, icl.ExitInvalidInvocation},
		{"unknown signal", []string{"--workdir", workDir, "run", "lib.yaml", "--signal", "nope"}, icl.ExitInvalidInvocation},
		{"negative limit", []string{"--workdir", workDir, "run", "lib.yaml", "--max-cycles", "-1"}, icl.ExitInvalidInvocation},
		{"missing definition", []string{"--workdir", workDir, "run", "missing.yaml"}, icl.ExitConfigError},
		{"invalid definition", []string{"--workdir", workDir, "run", "broken.yaml"}, icl.ExitConfigError},
		{"unknown root", []string{"--workdir", workDir, "run", "lib.yaml", "--root", "Nope"}, icl.ExitInvalidInvocation},
		{"bad config", []string{"--workdir", filepath.Join(workDir, "bad"), "run", "../lib.yaml"}, icl.ExitConfigError},
		{"unknown run", []string{"--workdir", workDir, "runs", "show", "nope"}, icl.ExitInvalidInvocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, res.ExitCode, err.Error())
			assert.Equal(t, tt.code, icl.ExitCode(err))
		})
	}
}

func TestRun_SignalRequiredWithSeveralInputs(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "two.yaml"), `
components:
  - name: Two
    nodes:
      - {name: a, kind: connector_in}
      - {name: b, kind: connector_in}
      - {name: c}
    edges:
      - {from: a, to: c, bit: 0}
      - {from: b, to: c, bit: 1}
`)
	res, _, err := run(t, "--workdir", workDir, "run", "two.yaml", "--no-store")
	require.Error(t, err)
	assert.Equal(t, icl.ExitInvalidInvocation, res.ExitCode)
	assert.Contains(t, err.Error(), "connector_in nodes (a, b)")

	res, out, err := run(t, "--workdir", workDir, "run", "two.yaml", "--no-store", "--signal", "a,b")
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)
	assert.Contains(t, out, "Two succeeded: 2 cycles")
}

func TestValidate(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "lib.yaml"), roundTripYAML)
	writeFile(t, filepath.Join(workDir, "broken.yaml"), "components: []\n")

	res, out, err := run(t, "--workdir", workDir, "validate", "lib.yaml")
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)
	assert.Contains(t, out, "valid: root Parent, 2 components")
	assert.Contains(t, out, "Child: 3 nodes, in [start], out [done]")

	res, out, err = run(t, "--workdir", workDir, "validate", "broken.yaml")
	require.Error(t, err)
	assert.Equal(t, icl.ExitConfigError, res.ExitCode)
	assert.Contains(t, out, "invalid")
}

func TestRunsList(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "lib.yaml"), roundTripYAML)

	_, out, err := run(t, "--workdir", workDir, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")

	var ids []string
	for i := 0; i < 2; i++ {
		res, _, err := run(t, "--workdir", workDir, "run", "lib.yaml")
		require.NoError(t, err)
		ids = append(ids, res.RunID)
		time.Sleep(2 * time.Millisecond)
	}

	_, out, err = run(t, "--workdir", workDir, "runs", "list")
	require.NoError(t, err)
	first := strings.Index(out, ids[0])
	second := strings.Index(out, ids[1])
	require.True(t, first >= 0 && second >= 0, out)
	assert.Less(t, first, second, "runs are listed oldest first")
	assert.Contains(t, out, "succeeded")

	_, out, err = run(t, "--workdir", workDir, "runs", "show", ids[1], "--snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "root/child"`)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestValidate_WatchRevalidatesOnChange(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "lib.yaml")
	writeFile(t, path, "components: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr syncBuffer
	done := make(chan error, 1)
	go func() {
		_, err := icl.Run(ctx, []string{"--no-color", "--workdir", workDir, "validate", "--watch", "lib.yaml"}, &stdout, &stderr)
		done <- err
	}()

	require.Eventually(t, func() bool { return strings.Contains(stdout.String(), "invalid") }, 5*time.Second, 10*time.Millisecond)

	// Keep rewriting until the watcher has picked up the change.
	require.Eventually(t, func() bool {
		writeFile(t, path, roundTripYAML)
		return strings.Contains(stdout.String(), "valid: root Parent")
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop after cancellation")
	}
}
