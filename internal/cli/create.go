package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/engine"
	"github.com/seward/pledge/internal/ident"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Env      string
	Caller   string
	Deadline int64
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending promise",
		Long: `Create a pending promise in an environment and print its id.

With --deadline, creates a timeout promise that resolves once a polled
monotonic reading passes the deadline.

Example:
  pledge create --env chain-a --caller alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env, "env", "", "environment name (required)")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "creating principal (required)")
	cmd.Flags().Int64Var(&opts.Deadline, "deadline", 0, "timeout deadline (0 for an ordinary promise)")
	cmd.MarkFlagRequired("env")
	cmd.MarkFlagRequired("caller")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	env, j, err := loadEnvironment(ctx, opts.RootOptions, opts.Env)
	if err != nil {
		return err
	}
	defer j.Close()

	f := newFormatter(opts.RootOptions, cmd)

	id, err := createPromise(env, opts)
	if err != nil {
		return engineFailure(f, err)
	}

	data := map[string]any{
		"promise":     id.String(),
		"environment": opts.Env,
		"status":      "pending",
	}
	return f.Success(data, func(w io.Writer) {
		fmt.Fprintln(w, id.String())
	})
}

// createPromise allocates an ordinary or timeout promise depending on
// the flags.
func createPromise(env *engine.Environment, opts *CreateOptions) (ident.PromiseID, error) {
	if opts.Deadline > 0 {
		return env.CreateTimeout(opts.Caller, opts.Deadline)
	}
	return env.Create(opts.Caller)
}
