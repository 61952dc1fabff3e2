package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seward/pledge/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run scenario files",
		Long: `Load each YAML scenario file, run it against a fresh set of
in-memory environments, and report pass/fail per scenario.

Exit codes: 0 all passed, 1 one or more scenarios failed, 2 a file
could not be loaded.

Example:
  pledge test scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args, cmd)
		},
	}
	return cmd
}

// scenarioReport is the per-file outcome in JSON output.
type scenarioReport struct {
	File     string   `json:"file"`
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Errors   []string `json:"errors,omitempty"`
}

func runTest(opts *RootOptions, files []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	reports := make([]scenarioReport, 0, len(files))
	failed := 0
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario "+file, err)
		}
		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "run scenario "+scenario.Name, err)
		}
		if !result.Pass {
			failed++
		}
		reports = append(reports, scenarioReport{
			File:     file,
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Steps:    len(result.Trace),
			Errors:   result.Errors,
		})
	}

	data := map[string]any{
		"scenarios": reports,
		"failed":    failed,
	}
	if err := f.Success(data, func(w io.Writer) {
		for _, r := range reports {
			verdict := "PASS"
			if !r.Pass {
				verdict = "FAIL"
			}
			fmt.Fprintf(w, "%s  %s (%d steps)\n", verdict, r.Scenario, r.Steps)
			for _, msg := range r.Errors {
				fmt.Fprintf(w, "      %s\n", msg)
			}
		}
		fmt.Fprintf(w, "%d scenario(s), %d failed\n", len(reports), failed)
	}); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}
