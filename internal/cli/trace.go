package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Env      string
	Messages bool
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled history of an environment",
		Long: `Show every journaled status transition for one environment, in
sequence order. With --messages, also lists the cross-chain envelopes
the environment emitted.

Example:
  pledge trace --env chain-a --messages`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env, "env", "", "environment name (required)")
	cmd.Flags().BoolVar(&opts.Messages, "messages", false, "include emitted envelopes")
	cmd.MarkFlagRequired("env")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	j, err := openJournal(opts.RootOptions)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd)

	transitions, err := j.ListTransitions(ctx, opts.Env)
	if err != nil {
		return WrapExitError(ExitCommandError, "read journal", err)
	}

	var messages []journal.MessageRecord
	if opts.Messages {
		messages, err = j.ListMessages(ctx, opts.Env, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "read journal", err)
		}
	}

	data := map[string]any{
		"environment": opts.Env,
		"transitions": transitionRows(transitions),
	}
	if opts.Messages {
		data["messages"] = messageRows(messages)
	}
	return f.Success(data, func(w io.Writer) {
		if len(transitions) == 0 {
			fmt.Fprintf(w, "no transitions recorded for %s\n", opts.Env)
		}
		for _, t := range transitions {
			fmt.Fprintf(w, "%4d  %s  %s -> %s", t.Seq, shortID(t.PromiseID), t.From, t.To)
			if len(t.Value) > 0 {
				fmt.Fprintf(w, "  %q", string(t.Value))
			}
			fmt.Fprintln(w)
		}
		for _, m := range messages {
			fmt.Fprintf(w, "%4d  %s  %s -> %s  corr=%s\n", m.Seq, m.Kind, m.Source, m.Dest, m.Correlation)
		}
	})
}

func transitionRows(recs []journal.TransitionRecord) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, t := range recs {
		rows = append(rows, map[string]any{
			"seq":     t.Seq,
			"promise": t.PromiseID,
			"from":    t.From,
			"to":      t.To,
			"value":   string(t.Value),
		})
	}
	return rows
}

func messageRows(recs []journal.MessageRecord) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, m := range recs {
		rows = append(rows, map[string]any{
			"seq":         m.Seq,
			"kind":        m.Kind,
			"source":      m.Source,
			"dest":        m.Dest,
			"correlation": m.Correlation,
		})
	}
	return rows
}

// shortID abbreviates a hex promise id for single-line listings.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
