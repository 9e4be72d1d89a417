// Package cli implements the upon command line.
//
// Exit codes are semantic:
//
//	0 success
//	1 a run failed (limit, operation error, cancellation)
//	2 invalid invocation (flags, arguments)
//	3 configuration or definition error
//	4 internal error
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upon/internal/config"
	"upon/internal/logging"
	"upon/internal/runstore"
)

// Result is what a CLI invocation produced.
type Result struct {
	ExitCode int
	// RunID is set by "run" when the run store is enabled.
	RunID string
}

// app carries the state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	workDir    string
	configPath string
	verbose    bool
	noColor    bool

	cfg    config.Config
	logger *zap.Logger

	result Result
}

// Run is the CLI entrypoint suitable for black-box tests. It accepts the
// argument slice (excluding argv[0]) and returns the semantic exit code plus
// any error. Errors are not printed.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if !isClassified(err) {
			// Errors cobra raises while parsing flags and arguments.
			err = invalidInvocationf("%v", err)
		}
		a.result.ExitCode = ExitCode(err)
		return a.result, err
	}
	a.result.ExitCode = ExitSuccess
	return a.result, nil
}

func isClassified(err error) bool {
	var ee *exitError
	var ie *InvocationError
	return errors.As(err, &ee) || errors.As(err, &ie)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "upon",
		Short:             "upon runs clocked signal-propagation components.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.workDir, "workdir", "", "working directory relative paths resolve against (default: current directory)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: <workdir>/"+config.FileName+" when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable color output")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	root.AddCommand(a.runCommand(), a.validateCommand(), a.runsCommand())
	return root
}

// init resolves the working directory, loads the configuration and builds
// the logger. It runs before every subcommand.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	if a.noColor {
		color.NoColor = true
	}

	if strings.TrimSpace(a.workDir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return internalErr(fmt.Errorf("resolve working directory: %w", err))
		}
		a.workDir = wd
	}
	a.workDir = filepath.Clean(a.workDir)
	if !filepath.IsAbs(a.workDir) {
		abs, err := filepath.Abs(a.workDir)
		if err != nil {
			return invalidInvocationf("--workdir: %v", err)
		}
		a.workDir = abs
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.resolve(a.configPath))
	} else {
		a.cfg, _, err = config.Discover(a.workDir)
	}
	if err != nil {
		return configErr(err)
	}

	level := a.cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.NewWriter(level, a.stderr)
	if err != nil {
		return configErr(err)
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

// resolve makes p absolute under the working directory.
func (a *app) resolve(p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(a.workDir, clean)
}

func (a *app) store() (*runstore.Store, error) {
	if strings.TrimSpace(a.cfg.StoreDir) == "" {
		return nil, nil
	}
	return runstore.NewStore(a.resolve(a.cfg.StoreDir))
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return invalidInvocationf("%s: expected %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
