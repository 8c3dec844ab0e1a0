package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"expectkit/internal/fixture"
	"expectkit/internal/logging"
	"expectkit/internal/runner"
	"expectkit/internal/store"
	"expectkit/internal/watch"
)

func newCheckCmd(a *app) *cobra.Command {
	var watchFiles bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check <subject.yaml> <assertion> [arg.yaml...]",
		Short: "Run one assertion against a YAML subject",
		Long: `Decodes the subject and argument files and runs the assertion.

Example:
  expectkit check user.yaml "to satisfy" user-spec.yaml
  expectkit check list.yaml "to have length" three.yaml --watch`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := append([]string{args[0]}, args[2:]...)
			phrase := args[1]
			ctx := cmd.Context()

			once := func() error {
				res, err := a.runCheck(ctx, files, phrase, timeout)
				if err != nil {
					return err
				}
				a.printer(cmd.OutOrStdout()).result(res)
				if !res.Passed {
					return errFailed
				}
				return nil
			}

			err := once()
			if !watchFiles {
				return err
			}
			if err != nil && !errors.Is(err, errFailed) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			}
			return a.watchCheck(ctx, cmd, files, once)
		},
	}
	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "Re-run when any of the files change")
	cmd.Flags().DurationVar(&timeout, "timeout", runner.DefaultTimeout, "Time limit for asynchronous assertions")
	return cmd
}

// runCheck decodes files (subject first) and runs phrase.
func (a *app) runCheck(ctx context.Context, files []string, phrase string, timeout time.Duration) (store.Result, error) {
	subject, err := fixture.DecodeFile(files[0])
	if err != nil {
		return store.Result{}, err
	}
	c := fixture.Check{Name: filepath.Base(files[0]) + " " + phrase, Subject: subject, Assertion: phrase}
	for _, f := range files[1:] {
		v, err := fixture.DecodeFile(f)
		if err != nil {
			return store.Result{}, err
		}
		c.Args = append(c.Args, v)
	}

	started := time.Now()
	res := runner.New(a.inst, runner.WithTimeout(timeout), runner.WithTheme(a.themeName())).Check(ctx, c)
	a.record(ctx, &store.Run{
		ID:        uuid.NewString(),
		Command:   "check",
		Source:    files[0],
		StartedAt: started,
		Duration:  time.Since(started),
		Results:   []store.Result{res},
	})
	return res, nil
}

// watchCheck re-runs once whenever a fixture changes, until interrupted.
func (a *app) watchCheck(ctx context.Context, cmd *cobra.Command, files []string, once func() error) error {
	fw, err := watch.New(files, watch.DefaultDebounce, func(paths []string) {
		logging.CLIDebug("re-running after change to %v", paths)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s changed\n", filepath.Base(paths[0]))
		if err := once(); err != nil && !errors.Is(err, errFailed) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes (Ctrl+C to stop)")
	if err := fw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
