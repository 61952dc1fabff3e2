package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/engine"
	"github.com/seward/pledge/internal/messenger"
)

// SimOptions holds flags for the sim command.
type SimOptions struct {
	*RootOptions
	Value int64
}

// NewSimCommand creates the sim command.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run an in-memory cross-chain round trip",
		Long: `Run a self-contained two-chain demonstration: chain-a creates a
promise, registers a doubling callback hosted on chain-b, resolves the
promise, and drains the channel until the proxy settles.

Everything is in memory and deterministic; the journal is not touched.

Example:
  pledge sim --value 21`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Value, "value", 100, "value to resolve the source promise with")

	return cmd
}

func runSim(opts *SimOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	relay := messenger.NewRelay()
	chainA := engine.New("chain-a",
		engine.WithMessenger(relay),
		engine.WithTokenGenerator(engine.NewCountingGenerator("corr-a")),
	)
	chainB := engine.New("chain-b",
		engine.WithMessenger(relay),
		engine.WithTokenGenerator(engine.NewCountingGenerator("corr-b")),
	)
	relay.Register("chain-a", chainA)
	relay.Register("chain-b", chainB)

	chainB.RegisterHandler("math.double", func(_ *engine.CallbackContext, v []byte) (engine.Outcome, error) {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Immediate([]byte(strconv.FormatInt(n*2, 10))), nil
	})

	var trace []string
	step := func(format string, args ...any) {
		trace = append(trace, fmt.Sprintf(format, args...))
	}

	parent, err := chainA.Create("alice")
	if err != nil {
		return engineFailure(f, err)
	}
	step("create   chain-a %s pending", parent.Short())

	proxy, err := chainA.ThenRemote("alice", parent, "chain-b", "math.double")
	if err != nil {
		return engineFailure(f, err)
	}
	step("register chain-a %s -> chain-b math.double, proxy %s", parent.Short(), proxy.Short())

	payload := strconv.FormatInt(opts.Value, 10)
	if err := chainA.Resolve("alice", parent, []byte(payload)); err != nil {
		return engineFailure(f, err)
	}
	step("resolve  chain-a %s = %s", parent.Short(), payload)

	ran, err := chainA.ExecutePromiseCallbacks(parent)
	if err != nil {
		return engineFailure(f, err)
	}
	step("execute  chain-a %s ran %d", parent.Short(), ran)

	delivered, err := relay.DrainAll(engine.DefaultMaxSteps)
	if err != nil {
		return engineFailure(f, err)
	}
	step("drain    delivered %d", delivered)

	status, err := chainA.Status(proxy)
	if err != nil {
		return engineFailure(f, err)
	}
	value, err := chainA.Value(proxy)
	if err != nil {
		return engineFailure(f, err)
	}
	step("proxy    chain-a %s %s = %s", proxy.Short(), status, string(value))

	data := map[string]any{
		"parent":    parent.String(),
		"proxy":     proxy.String(),
		"input":     payload,
		"status":    status.String(),
		"result":    string(value),
		"delivered": delivered,
		"trace":     trace,
	}
	return f.Success(data, func(w io.Writer) {
		for _, line := range trace {
			fmt.Fprintln(w, line)
		}
	})
}
