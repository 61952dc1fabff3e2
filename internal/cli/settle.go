package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// SettleOptions holds flags shared by resolve and reject.
type SettleOptions struct {
	*RootOptions
	Env    string
	Caller string
	Value  string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return newSettleCommand(rootOpts, "resolve", "Resolve a pending promise",
		`Resolve a pending promise with a value. Only the creator may do
this, and only once; a settled promise refuses further transitions.

Example:
  pledge resolve <promise-id> --env chain-a --caller alice --value 100`)
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return newSettleCommand(rootOpts, "reject", "Reject a pending promise",
		`Reject a pending promise with a failure payload. Authorization
and single-assignment rules match resolve.

Example:
  pledge reject <promise-id> --env chain-a --caller alice --value "insufficient funds"`)
}

func newSettleCommand(rootOpts *RootOptions, verb, short, long string) *cobra.Command {
	opts := &SettleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           verb + " <promise-id>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettle(opts, verb, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env, "env", "", "environment name (required)")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "acting principal (required)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "terminal payload")
	cmd.MarkFlagRequired("env")
	cmd.MarkFlagRequired("caller")

	return cmd
}

func runSettle(opts *SettleOptions, verb, arg string, cmd *cobra.Command) error {
	id, err := parsePromiseArg(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	env, j, err := loadEnvironment(ctx, opts.RootOptions, opts.Env)
	if err != nil {
		return err
	}
	defer j.Close()

	f := newFormatter(opts.RootOptions, cmd)

	if verb == "resolve" {
		err = env.Resolve(opts.Caller, id, []byte(opts.Value))
	} else {
		err = env.Reject(opts.Caller, id, []byte(opts.Value))
	}
	if err != nil {
		return engineFailure(f, err)
	}

	status, err := env.Status(id)
	if err != nil {
		return engineFailure(f, err)
	}

	data := map[string]any{
		"promise":     id.String(),
		"environment": opts.Env,
		"status":      status.String(),
	}
	return f.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", id.Short(), status)
	})
}
