package main

import (
	"fmt"
	"io"
	"os"

	"dirplan/internal/cli"
	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/template"

	"github.com/spf13/cobra"
)

type templateInfo struct {
	Name        string `json:"name" yaml:"name"`
	Folders     int    `json:"folders" yaml:"folders"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Save, load and list folder structure templates",
	}
	cmd.AddCommand(
		newTemplateSaveCmd(a),
		newTemplateLoadCmd(a),
		newTemplateListCmd(a),
		newTemplateDeleteCmd(a),
		newTemplateSeedCmd(a),
		newTemplatePredefinedCmd(a),
	)
	return cmd
}

func newTemplateSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <outline> <name>",
		Short: "Save an outline as a named template",
		Long: `Save an outline as a named template. A template with the same name is
replaced. JSON files in the export format are accepted as well as outlines.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			e, err := a.loadSource(cmd, args[0])
			if err != nil {
				return err
			}
			if err := e.SaveTemplate(commandContext(cmd), store, args[1]); err != nil {
				return err
			}
			a.printer.Success("saved template %s", args[1])
			return nil
		},
	}
}

// loadSource reads an outline, or a JSON export when the file holds one.
func (a *app) loadSource(cmd *cobra.Command, path string) (*editor.Editor, error) {
	if path != "-" {
		if data, err := os.ReadFile(path); err == nil && looksLikeJSON(data) {
			_, tree, err := core.DecodeExport(data)
			if err != nil {
				return nil, err
			}
			e := editor.New(editor.WithLogger(a.logger))
			if err := e.LoadTree(tree); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return a.loadOutline(cmd, path)
}

func looksLikeJSON(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return true
		}
		return false
	}
	return false
}

func newTemplateLoadCmd(a *app) *cobra.Command {
	var predefined bool
	cmd := &cobra.Command{
		Use:   "load <name> [outline]",
		Short: "Print a template as an outline, or write it to a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := editor.New(editor.WithLogger(a.logger))
			if predefined {
				if err := e.LoadPredefined(args[0]); err != nil {
					return err
				}
			} else {
				store, closeStore, err := a.openStore()
				if err != nil {
					return err
				}
				defer closeStore()
				if err := e.LoadTemplate(commandContext(cmd), store, args[0]); err != nil {
					return err
				}
			}

			if len(args) == 2 {
				if err := a.saveOutline(cmd, args[1], e); err != nil {
					return err
				}
				a.printer.Success("wrote template %s to %s", args[0], args[1])
				return nil
			}
			return a.printer.Result(e.Tree(), func(w io.Writer) {
				fmt.Fprintln(w, e.Text())
			})
		},
	}
	cmd.Flags().BoolVar(&predefined, "predefined", false, "Load a built-in template")
	return cmd
}

func newTemplateListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			doc, err := store.Load(commandContext(cmd))
			if err != nil {
				return err
			}
			return a.printTemplates(doc)
		},
	}
}

func (a *app) printTemplates(doc template.Document) error {
	infos := make([]templateInfo, 0, len(doc))
	for _, name := range doc.Names() {
		infos = append(infos, templateInfo{
			Name:        name,
			Folders:     doc[name].Len(),
			Fingerprint: template.Fingerprint(doc[name]),
		})
	}
	return a.printer.Result(infos, func(w io.Writer) {
		if len(infos) == 0 {
			a.printer.Info("no templates saved")
			return
		}
		table := cli.NewTableFormatter(w)
		table.Header(a.printer.Header("NAME"), a.printer.Header("FOLDERS"), a.printer.Header("FINGERPRINT"))
		for _, info := range infos {
			table.Row(info.Name, fmt.Sprint(info.Folders), info.Fingerprint[:12])
		}
		table.Flush()
	})
}

func newTemplateDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := template.Remove(commandContext(cmd), store, args[0]); err != nil {
				return err
			}
			a.printer.Success("deleted template %s", args[0])
			return nil
		},
	}
}

func newTemplateSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Copy the built-in templates into the template store",
		Long: `Copy the built-in templates into the template store. Templates that
already exist under the same name are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			src, err := template.Predefined()
			if err != nil {
				return err
			}
			added, err := template.Seed(commandContext(cmd), store, src)
			if err != nil {
				return err
			}
			if len(added) == 0 {
				a.printer.Info("all built-in templates already present")
				return nil
			}
			for _, name := range added {
				a.printer.Success("added %s", name)
			}
			return nil
		},
	}
}

func newTemplatePredefinedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predefined",
		Short: "List the built-in templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := template.Predefined()
			if err != nil {
				return err
			}
			return a.printTemplates(doc)
		},
	}
}
