package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upon/internal/component"
	"upon/internal/engine"
	"upon/internal/loader"
	"upon/internal/runstore"
	"upon/internal/trace"
)

const runLongHelp = `
Run a component library until no instance has staged work.

Each --signal starts a phase: the named connector_in nodes of the root
instance are signalled together and the orchestrator runs until it settles.
Separate connectors signalled in the same phase with commas. Without
--signal, the root component's only connector_in is signalled once.

Outputs (root connector_out emissions that no connection routes) are printed
as they occur.`

const runExample = `
upon run counter.yaml                         signal the only input once
upon run counter.yaml --signal tick --signal tick
                                              run two phases
upon run lib.yaml --root Adder --signal a,b   signal a and b together`

type runFlags struct {
	signals      []string
	root         string
	maxCycles    int
	maxInstances int
	workers      int
	tracePath    string
	storeDir     string
	noStore      bool
}

func (a *app) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:     "run <definition>",
		Short:   "run a component library until it settles",
		Long:    strings.TrimSpace(runLongHelp),
		Example: strings.TrimSpace(runExample),
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], &f)
		},
	}
	cmd.Flags().StringArrayVar(&f.signals, "signal", nil, "root connector_in to signal; repeat for more phases")
	cmd.Flags().StringVar(&f.root, "root", "", "root component (default: the definition's root)")
	cmd.Flags().IntVar(&f.maxCycles, "max-cycles", 0, "global cycle limit, 0 disables it")
	cmd.Flags().IntVar(&f.maxInstances, "max-instances", 0, "instance limit, 0 disables it")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "instances stepped concurrently")
	cmd.Flags().StringVar(&f.tracePath, "trace", "", "write the canonical execution trace to this path")
	cmd.Flags().StringVar(&f.storeDir, "store-dir", "", "run store base directory")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not record the run")
	return cmd
}

func (a *app) run(cmd *cobra.Command, definition string, f *runFlags) error {
	cfg := a.cfg
	flags := cmd.Flags()
	if flags.Changed("max-cycles") {
		cfg.MaxCycles = f.maxCycles
	}
	if flags.Changed("max-instances") {
		cfg.MaxInstances = f.maxInstances
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("trace") {
		cfg.TracePath = f.tracePath
	}
	if flags.Changed("store-dir") {
		cfg.StoreDir = f.storeDir
	}
	if f.noStore {
		cfg.StoreDir = ""
	}
	if err := cfg.Validate(); err != nil {
		return invalidInvocationf("%v", err)
	}
	a.cfg = cfg

	def, err := loader.Load(a.resolve(definition))
	if err != nil {
		return configErr(err)
	}
	root := def.Root
	if f.root != "" {
		if _, ok := def.Library.Component(f.root); !ok {
			return invalidInvocationf("--root: unknown component %q (have %s)", f.root, strings.Join(def.Library.Names(), ", "))
		}
		root = f.root
	}

	rec := trace.NewRecorder()
	opts := append(cfg.Options(),
		engine.WithLogger(a.logger),
		engine.WithSink(rec),
		engine.WithOutputHandler(func(out engine.Output) {
			fmt.Fprintf(a.stdout, "output %s cycle=%d\n", out.Connector, out.Cycle)
		}),
	)
	o, err := engine.New(def.Library, root, opts...)
	if err != nil {
		return configErr(err)
	}

	phases, err := signalPhases(o, f.signals)
	if err != nil {
		return err
	}

	store, err := a.store()
	if err != nil {
		return configErr(err)
	}
	var recorder *runstore.Recorder
	var record runstore.Run
	if store != nil {
		recorder = &runstore.Recorder{Store: store}
		record, err = recorder.Start(runstore.Run{
			Definition:  a.resolve(definition),
			LibraryHash: string(def.Library.Hash()),
			Root:        root,
			Signals:     flattenPhases(phases),
		})
		if err != nil {
			return internalErr(fmt.Errorf("start run record: %w", err))
		}
		a.result.RunID = record.RunID
		a.logger.Debug("run recorded", zap.String("run_id", record.RunID))
	}

	var failure error
	for _, phase := range phases {
		for _, connector := range phase {
			if err := o.Signal(connector); err != nil {
				return internalErr(err)
			}
		}
		if _, failure = o.Run(cmd.Context()); failure != nil {
			break
		}
	}

	res := o.Result()
	tr := rec.Trace(string(def.Library.Hash()), root)
	traceHash, hashErr := tr.Hash()
	if hashErr != nil {
		return internalErr(fmt.Errorf("trace: %w", hashErr))
	}
	if cfg.TracePath != "" {
		if err := runstore.WriteTrace(a.resolve(cfg.TracePath), tr); err != nil {
			return internalErr(err)
		}
	}

	if recorder != nil {
		if failure != nil {
			_, err = recorder.Fail(record, res, o.Snapshot(), tr, failure)
		} else {
			_, err = recorder.Complete(record, res, o.Snapshot(), tr)
		}
		if err != nil {
			return internalErr(fmt.Errorf("record run: %w", err))
		}
	}

	status := "succeeded"
	if failure != nil {
		status = "failed"
	}
	fmt.Fprintf(a.stdout, "%s %s: %d cycles, %d instances, %d outputs\n",
		underline(root), statusHighlight(status), res.Cycles, res.Instances, len(res.Outputs))
	fmt.Fprintf(a.stdout, "trace hash: %s\n", traceHash)
	if record.RunID != "" {
		fmt.Fprintf(a.stdout, "run id: %s\n", record.RunID)
	}

	if failure != nil {
		return runErr(fmt.Errorf("run %s: %w", root, failure))
	}
	return nil
}

// signalPhases splits --signal values into phases and checks every connector
// exists on the root component.
func signalPhases(o *engine.Orchestrator, raw []string) ([][]string, error) {
	c := o.Root().Component()
	if len(raw) == 0 {
		inputs := c.Connectors(component.KindConnectorIn)
		if len(inputs) != 1 {
			return nil, invalidInvocationf("--signal is required: root component %q has %d connector_in nodes (%s)",
				c.Name(), len(inputs), strings.Join(inputs, ", "))
		}
		return [][]string{inputs}, nil
	}

	phases := make([][]string, 0, len(raw))
	for _, r := range raw {
		var phase []string
		for _, name := range strings.Split(r, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, invalidInvocationf("--signal %q: empty connector name", r)
			}
			if _, ok := c.ConnectorIn(name); !ok {
				return nil, invalidInvocationf("--signal %q: root component %q has no connector_in %q", r, c.Name(), name)
			}
			phase = append(phase, name)
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

func flattenPhases(phases [][]string) []string {
	out := make([]string, 0, len(phases))
	for _, p := range phases {
		out = append(out, strings.Join(p, ","))
	}
	return out
}
