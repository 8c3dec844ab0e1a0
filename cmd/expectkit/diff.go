package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expectkit/internal/fixture"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <actual.yaml> <expected.yaml>",
		Short: "Print the structural diff between two YAML values",
		Long: `Decodes both files and prints how the first differs from the second.
Exits non-zero when they differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actual, err := fixture.DecodeFile(args[0])
			if err != nil {
				return err
			}
			expected, err := fixture.DecodeFile(args[1])
			if err != nil {
				return err
			}

			eq, err := a.inst.Equal(actual, expected)
			if err != nil {
				return err
			}
			if eq {
				fmt.Fprintln(cmd.OutOrStdout(), "No differences")
				return nil
			}

			node, err := a.inst.Diff(actual, expected)
			if err != nil {
				return err
			}
			out, err := a.inst.RenderDiff(node, a.themeName())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return errFailed
		},
	}
}
