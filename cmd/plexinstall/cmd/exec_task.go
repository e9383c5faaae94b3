package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexinstall/internal/installer"
	"github.com/plexsphere/plexinstall/internal/remote"
)

var execTaskEncoded string

// execTaskError marks an exec-task failure that left no result on stdout.
type execTaskError struct {
	err error
}

func (e *execTaskError) Error() string { return "plexinstall exec-task: " + e.err.Error() }

func (e *execTaskError) Unwrap() error { return e.err }

var execTaskCmd = &cobra.Command{
	Use:    "exec-task",
	Short:  "Execute one task and print its result (internal)",
	Hidden: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return &execTaskError{err: err}
		}
		return nil
	},
	RunE: runExecTask,
}

func init() {
	execTaskCmd.Flags().StringVar(&execTaskEncoded, "task", "", "base64 encoded task (default: read JSON from stdin)")
	execTaskCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &execTaskError{err: err}
	})
	rootCmd.AddCommand(execTaskCmd)
}

// runExecTask is the receiving side of the sudo and SSH channels. The result
// is the only thing written to stdout; progress and logs go to stderr.
func runExecTask(cmd *cobra.Command, _ []string) error {
	level := "info"
	if logLevel != "" {
		level = logLevel
	}
	logger := setupLogger(level)

	var (
		task remote.Task
		err  error
	)
	if execTaskEncoded != "" {
		task, err = remote.DecodeTask(execTaskEncoded)
	} else {
		task, err = remote.ReadTask(cmd.InOrStdin())
	}
	if err != nil {
		return &execTaskError{err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer stop()

	d := remote.NewDispatcher(logger)
	installer.RegisterTasks(d, logger)

	if err := remote.Serve(ctx, d, task, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return &execTaskError{err: err}
	}
	return nil
}
