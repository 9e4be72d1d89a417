package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"upon/internal/runstore"
)

func (a *app) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "inspect recorded runs",
	}
	cmd.AddCommand(a.runsListCommand(), a.runsShowCommand())
	return cmd
}

func (a *app) runsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list recorded runs, oldest first",
		Args:  exactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			ids, err := store.ListRunIDs()
			if err != nil {
				return internalErr(err)
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.stdout, "no runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTATUS\tROOT\tCYCLES\tOUTPUTS\tSTARTED")
			for _, id := range ids {
				run, err := store.LoadRun(id)
				if err != nil {
					fmt.Fprintf(tw, "%s\t%s\t\t\t\t\n", id, statusHighlight("unreadable"))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", run.RunID, statusHighlight(string(run.Status)),
					run.Root, run.Cycles, len(run.Outputs), run.StartTime.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func (a *app) runsShowCommand() *cobra.Command {
	var snapshot bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "show one recorded run",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			run, err := store.LoadRun(args[0])
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return invalidInvocationf("run %q not found", args[0])
				}
				return internalErr(err)
			}
			if snapshot {
				snap, err := store.LoadSnapshot(run.RunID)
				if err != nil {
					return internalErr(err)
				}
				b, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return internalErr(err)
				}
				fmt.Fprintln(a.stdout, string(b))
				return nil
			}
			return a.printRun(store, run)
		},
	}
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "print the final instance snapshot as JSON")
	return cmd
}

func (a *app) printRun(store *runstore.Store, run runstore.Run) error {
	fmt.Fprintf(a.stdout, "run:        %s\n", run.RunID)
	fmt.Fprintf(a.stdout, "status:     %s\n", statusHighlight(string(run.Status)))
	fmt.Fprintf(a.stdout, "definition: %s\n", run.Definition)
	fmt.Fprintf(a.stdout, "root:       %s\n", run.Root)
	fmt.Fprintf(a.stdout, "library:    %s\n", run.LibraryHash)
	fmt.Fprintf(a.stdout, "signals:    %v\n", run.Signals)
	fmt.Fprintf(a.stdout, "started:    %s\n", run.StartTime.Format(time.RFC3339Nano))
	if run.EndTime != nil {
		fmt.Fprintf(a.stdout, "finished:   %s\n", run.EndTime.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(a.stdout, "cycles:     %d\n", run.Cycles)
	fmt.Fprintf(a.stdout, "instances:  %d\n", run.Instances)
	if run.TraceHash != "" {
		fmt.Fprintf(a.stdout, "trace hash: %s\n", run.TraceHash)
	}
	for _, out := range run.Outputs {
		fmt.Fprintf(a.stdout, "output %s cycle=%d\n", out.Connector, out.Cycle)
	}

	failure, ok, err := store.LoadFailure(run.RunID)
	if err != nil {
		return internalErr(err)
	}
	if ok {
		fmt.Fprintf(a.stdout, "failure:    %s (%s): %s\n", redHighlight(string(failure.FailureClass)), failure.ErrorCode, failure.ErrorMessage)
	}
	return nil
}

func (a *app) requireStore() (*runstore.Store, error) {
	store, err := a.store()
	if err != nil {
		return nil, configErr(err)
	}
	if store == nil {
		return nil, configErr(errors.New("run store is disabled (store_dir is empty)"))
	}
	return store, nil
}
