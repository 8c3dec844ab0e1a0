package main

import (
	"time"

	"github.com/spf13/cobra"

	"expectkit/internal/fixture"
	"expectkit/internal/runner"
)

func newSuiteCmd(a *app) *cobra.Command {
	var concurrency int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "suite <suite.yaml>",
		Short: "Run a suite of checks concurrently",
		Long: `Runs every check listed in a suite file. Each check runs on its own
clone of the configured instance. Settings in the suite file take
precedence over the flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := fixture.LoadSuite(args[0])
			if err != nil {
				return err
			}
			r := runner.New(a.inst,
				runner.WithConcurrency(concurrency),
				runner.WithTimeout(timeout),
				runner.WithTheme(a.themeName()),
			)
			run, err := r.Run(cmd.Context(), s)
			if err != nil {
				return err
			}
			a.record(cmd.Context(), run)

			p := a.printer(cmd.OutOrStdout())
			for _, res := range run.Results {
				p.result(res)
			}
			p.summary(run)
			if !run.OK() {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Checks to run at once (default: GOMAXPROCS)")
	cmd.Flags().DurationVar(&timeout, "timeout", runner.DefaultTimeout, "Time limit per check")
	return cmd
}
