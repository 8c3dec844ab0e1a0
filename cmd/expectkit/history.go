package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var stats bool
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Lists recent runs from the history database, or the results of one run.
Requires --history (or history.path in the config file).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.historyStore()
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("no history database configured (use --history)")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			p := a.printer(out)

			switch {
			case prune > 0:
				n, err := s.Prune(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d runs\n", n)

			case stats:
				rows, err := s.Stats(ctx)
				if err != nil {
					return err
				}
				for _, r := range rows {
					fmt.Fprintf(out, "%-40s %5d passed %5d failed\n", r.Phrase, r.Passed, r.Failed)
				}

			case len(args) == 1:
				run, err := s.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s %s\n", run.ID, run.Command, run.Source)
				for _, res := range run.Results {
					p.result(res)
				}
				p.summary(run)

			default:
				runs, err := s.Recent(ctx, limit)
				if err != nil {
					return err
				}
				for _, run := range runs {
					status := p.style(passStyle, "ok  ")
					if !run.OK() {
						status = p.style(failStyle, "FAIL")
					}
					fmt.Fprintf(out, "%s %s %-5s %3d/%-3d %s %s\n",
						status, run.StartedAt.Local().Format(time.DateTime), run.Command,
						run.Passed, run.Passed+run.Failed, run.ID, run.Source)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show pass/fail counts per assertion")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete runs older than this duration")
	return cmd
}
