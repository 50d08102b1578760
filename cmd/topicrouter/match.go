package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/topicrouter/internal/core/pattern"
)

func newMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match <binding-key> <topic>...",
		Short: "Test topics against a binding key",
		Long: `Print the normalized form of a binding key and whether each topic
matches it. Useful when a subscription does not receive what it should.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pattern.Compile(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "binding key: %s\n", p.Key())
			fmt.Fprintf(out, "normalized:  %s\n", p.Normalized())
			for _, topic := range args[1:] {
				fmt.Fprintf(out, "%-5t %s\n", p.Match(topic), topic)
			}
			return nil
		},
	}
}
