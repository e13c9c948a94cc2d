package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dirplan/internal/cli"
	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/template"

	"github.com/spf13/cobra"
)

// Version is set during build with -ldflags
var version = "dev"

// app carries the global flags and the printer shared by every command.
type app struct {
	storePath  string
	backend    string
	sqlitePath string
	tasksPath  string
	output     string
	verbose    bool
	noColor    bool
	quiet      bool

	printer *cli.Printer
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dirplan",
		Short: "Plan folder structures as indented outlines and create them on disk",
		Long: `dirplan edits folder structures written as indented outlines, one folder
per line, four spaces per level. Outlines can be reformatted, edited,
saved as templates, exported as ZIP or JSON, and created on disk.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(a.output)
			if err != nil {
				return err
			}
			a.printer = &cli.Printer{
				Out:     cmd.OutOrStdout(),
				Err:     cmd.ErrOrStderr(),
				Format:  format,
				NoColor: a.noColor || os.Getenv("NO_COLOR") != "",
				Quiet:   a.quiet,
			}
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.storePath, "store", template.DefaultFile, "Template file for the file backend")
	flags.StringVar(&a.backend, "backend", "file", "Template backend: file or sqlite")
	flags.StringVar(&a.sqlitePath, "sqlite", "dirplan.db", "Database path for the sqlite backend")
	flags.StringVar(&a.tasksPath, "tasks", "backup_tasks.json", "Backup task list")
	flags.StringVarP(&a.output, "output", "o", "text", "Output format: text, json or yaml")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug details to stderr")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored markers")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress status lines")

	root.AddCommand(
		newFmtCmd(a),
		newNamesCmd(a),
		newImportCmd(a),
		newCreateCmd(a),
		newAddCmd(a),
		newGenerateCmd(a),
		newRenameCmd(a),
		newDeleteCmd(a),
		newMoveCmd(a),
		newExportCmd(a),
		newTemplateCmd(a),
		newBackupCmd(a),
	)
	return root
}

// openStore opens the configured template backend.
func (a *app) openStore() (template.Store, func(), error) {
	switch strings.ToLower(a.backend) {
	case "sqlite":
		store, err := template.NewSQLiteStore(a.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "file", "":
		return template.NewFileStore(a.storePath), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (use file or sqlite)", a.backend)
	}
}

// loadOutline reads an outline file into a new editor. "-" reads stdin.
// A missing file gives an empty editor.
func (a *app) loadOutline(cmd *cobra.Command, path string) (*editor.Editor, error) {
	e := editor.New(editor.WithLogger(a.logger))

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return e, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	e.Load(string(data))
	return e, nil
}

// saveOutline writes the editor's buffer back. "-" writes to stdout.
func (a *app) saveOutline(cmd *cobra.Command, path string, e *editor.Editor) error {
	text := e.Text() + "\n"
	if path == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// commandContext returns the command's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// describeError turns known errors into a hint for the user.
func describeError(err error) string {
	var validationErr *core.ValidationError
	var materializeErr *editor.MaterializeError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &materializeErr):
		return fmt.Sprintf("%v (nothing after %s was created)", materializeErr.Err, materializeErr.Path)
	case errors.Is(err, editor.ErrEmpty):
		return "the outline is empty; add a folder first"
	case errors.Is(err, template.ErrNotFound):
		return err.Error() + " (see 'dirplan template list')"
	default:
		return err.Error()
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(1)
	}
}
