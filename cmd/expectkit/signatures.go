package main

import (
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

func newSignaturesCmd(a *app) *cobra.Command {
	var listTypes bool

	cmd := &cobra.Command{
		Use:   "signatures [phrase]",
		Short: "List registered assertion signatures",
		Long: `Lists every assertion signature, or those fuzzily matching a phrase,
best match first.

Example:
  expectkit signatures "have prop"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listTypes {
				for _, name := range a.inst.Types().Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			var texts []string
			for _, sig := range a.inst.Signatures() {
				texts = append(texts, sig.String())
			}
			if len(args) == 0 {
				for _, t := range texts {
					fmt.Fprintln(out, t)
				}
				return nil
			}

			matches := fuzzy.Find(args[0], texts)
			if len(matches) == 0 {
				return fmt.Errorf("no signature matches %q", args[0])
			}
			for _, m := range matches {
				fmt.Fprintln(out, m.Str)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listTypes, "types", false, "List registered type names instead")
	return cmd
}
