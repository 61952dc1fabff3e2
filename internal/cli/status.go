package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/journal"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Env string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <promise-id>",
		Short: "Show the journaled state of a promise",
		Long: `Show the latest journaled snapshot of one promise: status, creator,
kind, and terminal payload.

Example:
  pledge status <promise-id> --env chain-a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env, "env", "", "environment name (required)")
	cmd.MarkFlagRequired("env")

	return cmd
}

func runStatus(opts *StatusOptions, arg string, cmd *cobra.Command) error {
	// Parse up front so a malformed id is a command error, not a miss.
	if _, err := parsePromiseArg(arg); err != nil {
		return err
	}

	j, err := openJournal(opts.RootOptions)
	if err != nil {
		return err
	}
	defer j.Close()

	f := newFormatter(opts.RootOptions, cmd)

	rec, err := j.GetPromise(cmd.Context(), opts.Env, arg)
	if errors.Is(err, journal.ErrNotFound) {
		if ferr := f.Error("UNKNOWN_PROMISE", "no journaled promise with this id"); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "unknown promise")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "read journal", err)
	}

	data := map[string]any{
		"promise":     rec.ID,
		"environment": rec.Environment,
		"status":      rec.Status,
		"creator":     rec.Creator,
		"kind":        rec.Kind,
		"value":       string(rec.Value),
		"seq":         rec.Seq,
	}
	if rec.Kind == "timeout" {
		data["deadline"] = rec.Deadline
	}
	return f.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "promise:     %s\n", rec.ID)
		fmt.Fprintf(w, "environment: %s\n", rec.Environment)
		fmt.Fprintf(w, "status:      %s\n", rec.Status)
		fmt.Fprintf(w, "creator:     %s\n", rec.Creator)
		fmt.Fprintf(w, "kind:        %s\n", rec.Kind)
		if len(rec.Value) > 0 {
			fmt.Fprintf(w, "value:       %s\n", string(rec.Value))
		}
		if rec.Kind == "timeout" {
			fmt.Fprintf(w, "deadline:    %d\n", rec.Deadline)
		}
	})
}
