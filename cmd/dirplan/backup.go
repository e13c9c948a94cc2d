package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dirplan/internal/backup"
	"dirplan/internal/cli"

	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage folder mirror tasks",
		Long: `Backup tasks mirror a source directory into a destination. A pass copies
every file whose destination copy is missing or older than the source.
Tasks are kept in the file named by --tasks.`,
	}
	cmd.AddCommand(
		newBackupAddCmd(a),
		newBackupEditCmd(a),
		newBackupListCmd(a),
		newBackupRemoveCmd(a),
		newBackupRunCmd(a),
	)
	return cmd
}

func (a *app) loadTasks() (*backup.Manager, error) {
	m := backup.NewManager(a.tasksPath, a.logger)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func newBackupAddCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "add <name> <source> <destination>",
		Short: "Add a backup task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadTasks()
			if err != nil {
				return err
			}
			if err := m.Add(backup.NewTask(args[0], args[1], args[2], interval)); err != nil {
				return err
			}
			a.printer.Success("added backup task %s (every %s)", args[0], interval)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "Time between passes")
	return cmd
}

func newBackupEditCmd(a *app) *cobra.Command {
	var (
		rename      string
		source      string
		destination string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Change a backup task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadTasks()
			if err != nil {
				return err
			}
			old, err := m.Get(args[0])
			if err != nil {
				return err
			}
			updated := backup.NewTask(old.Name, old.Source, old.Destination, old.Interval)
			if rename != "" {
				updated.Name = rename
			}
			if source != "" {
				updated.Source = source
			}
			if destination != "" {
				updated.Destination = destination
			}
			if interval > 0 {
				updated.Interval = interval
			}
			if err := m.Update(args[0], updated); err != nil {
				return err
			}
			a.printer.Success("updated backup task %s", updated.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&rename, "name", "", "New task name")
	cmd.Flags().StringVar(&source, "source", "", "New source directory")
	cmd.Flags().StringVar(&destination, "destination", "", "New destination directory")
	cmd.Flags().DurationVar(&interval, "interval", 0, "New time between passes")
	return cmd
}

func newBackupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List backup tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadTasks()
			if err != nil {
				return err
			}
			tasks := m.List()
			return a.printer.Result(tasks, func(w io.Writer) {
				if len(tasks) == 0 {
					a.printer.Info("no backup tasks")
					return
				}
				table := cli.NewTableFormatter(w)
				table.Header("NAME", "SOURCE", "DESTINATION", "INTERVAL")
				for _, t := range tasks {
					table.Row(t.Name, t.Source, t.Destination, t.Interval.String())
				}
				table.Flush()
			})
		},
	}
}

func newBackupRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a backup task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadTasks()
			if err != nil {
				return err
			}
			if err := m.Remove(args[0]); err != nil {
				return err
			}
			a.printer.Success("removed backup task %s", args[0])
			return nil
		},
	}
}

func newBackupRunCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one pass of a backup task, or keep running it with --watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadTasks()
			if err != nil {
				return err
			}
			task, err := m.Get(args[0])
			if err != nil {
				return err
			}

			if !watch {
				res, err := task.RunPass(commandContext(cmd))
				if err != nil {
					return err
				}
				return a.printer.Result(res, func(w io.Writer) {
					a.printer.Success("%s: %d copied, %d up to date, %d folders",
						task.Name, res.Copied, res.Skipped, res.Dirs)
				})
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.printer.Info("running %s every %s, press Ctrl+C to stop", task.Name, task.Interval)
			task.Start(ctx)
			<-ctx.Done()
			task.Stop()
			task.Wait()
			fmt.Fprintln(cmd.ErrOrStderr())
			a.printer.Success("stopped %s", task.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running passes on the task's interval")
	return cmd
}

