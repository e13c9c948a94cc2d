package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"dirplan/internal/editor"

	"github.com/spf13/cobra"
)

func newFmtCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <outline>",
		Short: "Reformat an outline to four spaces per level",
		Long: `Parse an outline and print it back with canonical indentation.
Use "-" to read from stdin.

Examples:
  dirplan fmt plan.txt
  dirplan fmt -w plan.txt
  cat plan.txt | dirplan fmt -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadOutline(cmd, args[0])
			if err != nil {
				return err
			}
			if write && args[0] != "-" {
				if err := a.saveOutline(cmd, args[0], e); err != nil {
					return err
				}
				a.printer.Success("formatted %s", args[0])
				return nil
			}
			return a.printer.Result(e.Tree(), func(w io.Writer) {
				fmt.Fprintln(w, e.Text())
			})
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}

func newNamesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "names <outline>",
		Short: "List the distinct folder names in an outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadOutline(cmd, args[0])
			if err != nil {
				return err
			}
			names := e.Names()
			return a.printer.Result(names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "import <directory>",
		Short: "Build an outline from the folders of an existing directory",
		Long: `Walk a directory and print its subfolders as an outline. Files and
symbolic links are skipped, as are folders that cannot be read.

Examples:
  dirplan import ~/projects/site
  dirplan import ~/projects/site --to site.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := editor.New(editor.WithLogger(a.logger))
			if err := e.ImportDir(args[0]); err != nil {
				return err
			}
			if out != "" {
				if err := a.saveOutline(cmd, out, e); err != nil {
					return err
				}
				a.printer.Success("imported %d folders into %s", e.Tree().Len(), out)
				return nil
			}
			return a.printer.Result(e.Tree(), func(w io.Writer) {
				fmt.Fprintln(w, e.Text())
			})
		},
	}
	cmd.Flags().StringVar(&out, "to", "", "Write the outline to this file instead of stdout")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "create <outline> <base-path>",
		Short: "Create the outline's folders under a base path",
		Long: `Create one directory per outline entry under base-path, parents first.
Existing directories are left untouched, so running create twice is safe.
The first failure stops the run; folders created before it are kept.

Examples:
  dirplan create plan.txt ~/projects/new-site
  dirplan create plan.txt ~/projects/new-site --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadOutline(cmd, args[0])
			if err != nil {
				return err
			}
			res, err := e.Materialize(commandContext(cmd), args[1], editor.MaterializeOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			return a.printer.Result(res, func(w io.Writer) {
				verb := "created"
				if dryRun {
					verb = "would create"
				}
				for _, p := range res.Created {
					fmt.Fprintf(w, "%s %s\n", verb, p)
				}
				a.printer.Success("%d of %d folders %s", len(res.Created), len(res.Attempted), verb)
			})
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be created without touching the disk")
	return cmd
}

// editCommand builds a command that loads an outline, applies fn and
// saves the outline back.
func editCommand(a *app, use, short string, args cobra.PositionalArgs, fn func(e *editor.Editor, args []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			e, err := a.loadOutline(cmd, path)
			if err != nil {
				return err
			}
			msg, err := fn(e, args[1:])
			if err != nil {
				return err
			}
			if err := a.saveOutline(cmd, path, e); err != nil {
				return err
			}
			if path != "-" {
				a.printer.Success("%s", msg)
			}
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var parent string
	cmd := editCommand(a, "add <outline> <name>...", "Add folders to an outline",
		cobra.MinimumNArgs(2),
		func(e *editor.Editor, names []string) (string, error) {
			if parent == "" {
				for _, n := range names {
					if err := e.AddRoot(n); err != nil {
						return "", err
					}
				}
				return fmt.Sprintf("added %s", strings.Join(names, ", ")), nil
			}
			if err := e.InsertChild(parent, names...); err != nil {
				return "", err
			}
			return fmt.Sprintf("added %s under %s", strings.Join(names, ", "), parent), nil
		})
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Add under the first folder with this name")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	return editCommand(a, "generate <outline> <parent> <base-name> <count>",
		"Add base-name_1 ... base-name_count under a folder",
		cobra.ExactArgs(4),
		func(e *editor.Editor, args []string) (string, error) {
			count, err := strconv.Atoi(args[2])
			if err != nil {
				return "", fmt.Errorf("count must be a whole number: %q", args[2])
			}
			if err := e.GenerateSubfolders(args[0], args[1], count); err != nil {
				return "", err
			}
			return fmt.Sprintf("generated %d folders under %s", count, args[0]), nil
		})
}

func newRenameCmd(a *app) *cobra.Command {
	return editCommand(a, "rename <outline> <old-name> <new-name>",
		"Rename every folder with a given name",
		cobra.ExactArgs(3),
		func(e *editor.Editor, args []string) (string, error) {
			n, err := e.RenameNode(args[0], args[1])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("renamed %d folder(s) to %s", n, args[1]), nil
		})
}

func newDeleteCmd(a *app) *cobra.Command {
	return editCommand(a, "delete <outline> <name>",
		"Delete the first folder with a given name and everything under it",
		cobra.ExactArgs(2),
		func(e *editor.Editor, args []string) (string, error) {
			if err := e.DeleteSubtree(args[0]); err != nil {
				return "", err
			}
			return fmt.Sprintf("deleted %s", args[0]), nil
		})
}

func newMoveCmd(a *app) *cobra.Command {
	return editCommand(a, "move <outline> <name> <up|down>",
		"Swap a folder with its neighbour at the same level",
		cobra.ExactArgs(3),
		func(e *editor.Editor, args []string) (string, error) {
			dir, err := editor.ParseDirection(args[1])
			if err != nil {
				return "", err
			}
			if err := e.MoveSibling(args[0], dir); err != nil {
				return "", err
			}
			return fmt.Sprintf("moved %s %s", args[0], dir), nil
		})
}
