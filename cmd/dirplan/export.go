package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dirplan/internal/cli"
	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/template"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		name   string
		to     string
	)
	cmd := &cobra.Command{
		Use:   "export <outline>",
		Short: "Export an outline as a ZIP archive or JSON document",
		Long: `Export the outline's folders.

The ZIP format holds one directory per folder, each with a .gitkeep
placeholder, under a top-level folder named by --name. The JSON format
wraps the structure with its name, export time and fingerprint.

Examples:
  dirplan export plan.txt --name site
  dirplan export plan.txt --format json --to site.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadOutline(cmd, args[0])
			if err != nil {
				return err
			}
			tree := e.Tree()
			if len(tree) == 0 {
				return editor.ErrEmpty
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			var data []byte
			switch strings.ToLower(format) {
			case "zip":
				data, err = tree.ToZipBytes(name)
				if to == "" {
					to = name + ".zip"
				}
			case "json":
				data, err = json.MarshalIndent(core.NewExport(name, tree, template.Fingerprint(tree)), "", "    ")
				if to == "" {
					to = name + ".json"
				}
			default:
				return fmt.Errorf("unknown export format %q (use zip or json)", format)
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(to, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", to, err)
			}
			a.printer.Success("exported %d folders to %s (%s)", tree.Len(), to, cli.FormatBytes(int64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "zip", "Export format: zip or json")
	cmd.Flags().StringVar(&name, "name", "", "Structure name (defaults to the outline file name)")
	cmd.Flags().StringVar(&to, "to", "", "Destination file")
	return cmd
}
