package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"upon/internal/component"
	"upon/internal/loader"
)

const validateLongHelp = `
Validate a definition file: parse it, build every component and check every
cross-component reference. With --watch, keep running and validate again
whenever the file changes.`

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 50 * time.Millisecond

func (a *app) validateCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "validate <definition>",
		Short: "check a definition file",
		Long:  strings.TrimSpace(validateLongHelp),
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.resolve(args[0])
			err := a.validateOnce(path)
			if !watch {
				if err != nil {
					return configErr(err)
				}
				return nil
			}
			return a.watch(cmd, path)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "validate again on every change until interrupted")
	return cmd
}

func (a *app) validateOnce(path string) error {
	def, err := loader.Load(path)
	if err != nil {
		fmt.Fprintf(a.stdout, "%s %s: %v\n", underline(path), statusHighlight("invalid"), err)
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s: root %s, %d components, library %s\n",
		underline(path), statusHighlight("valid"), def.Root, len(def.Library.Names()), shortHash(def.Library.Hash()))
	for _, name := range def.Library.Names() {
		c, _ := def.Library.Component(name)
		fmt.Fprintf(a.stdout, "  %s: %d nodes, in [%s], out [%s]\n", name, c.Len(),
			strings.Join(c.Connectors(component.KindConnectorIn), ", "),
			strings.Join(c.Connectors(component.KindConnectorOut), ", "))
	}
	return nil
}

// watch validates path on every change until the command context ends.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save keep being observed.
func (a *app) watch(cmd *cobra.Command, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return internalErr(fmt.Errorf("watch: %w", err))
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return configErr(fmt.Errorf("watch %s: %w", filepath.Dir(path), err))
	}
	a.logger.Debug("watching definition", zap.String("path", path))

	ctx := cmd.Context()
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug("definition changed", zap.String("op", event.Op.String()))
			pending = time.After(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", zap.Error(err))

		case <-pending:
			pending = nil
			_ = a.validateOnce(path)
		}
	}
}

func shortHash(h component.Hash) string {
	s := string(h)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
