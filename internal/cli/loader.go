package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/engine"
	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/journal"
)

// openJournal opens the journal named by --db.
func openJournal(opts *RootOptions) (*journal.Journal, error) {
	j, err := journal.Open(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open journal "+opts.DBPath, err)
	}
	return j, nil
}

// loadEnvironment rehydrates one environment from the journal. The
// restored environment serves create/resolve/reject and reads;
// registrations and forwards only exist inside a live process (sim,
// test).
func loadEnvironment(ctx context.Context, opts *RootOptions, name string) (*engine.Environment, *journal.Journal, error) {
	j, err := openJournal(opts)
	if err != nil {
		return nil, nil, err
	}
	env, err := engine.Restore(ctx, name, j)
	if err != nil {
		j.Close()
		return nil, nil, WrapExitError(ExitCommandError, "restore environment "+name, err)
	}
	return env, j, nil
}

// parsePromiseArg parses a hex promise id argument.
func parsePromiseArg(arg string) (ident.PromiseID, error) {
	id, err := ident.Parse(arg)
	if err != nil {
		return ident.PromiseID{}, WrapExitError(ExitCommandError, "invalid promise id", err)
	}
	return id, nil
}

// newFormatter builds the output formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

// engineFailure renders an engine error and converts it into an exit
// code. Engine errors are operation failures, not command errors: the
// command was well-formed, the engine refused it.
func engineFailure(f *OutputFormatter, err error) error {
	code := "ENGINE"
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		code = string(ee.Code)
	}
	if ferr := f.Error(code, err.Error()); ferr != nil {
		return ferr
	}
	return NewExitError(ExitFailure, err.Error())
}
