package main

import (
	"io"

	"github.com/hatlonely/tql/dialect"
	"github.com/spf13/cobra"
)

func newQuoteCommand(opts *RootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "quote <identifier>...",
		Short: "Quote identifiers with the rules of a dialect",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dialect.New(name)
			if err != nil {
				return err
			}
			quoted := make([]string, 0, len(args))
			for _, arg := range args {
				quoted = append(quoted, d.QuoteIdentifier(arg))
			}
			return output(cmd.OutOrStdout(), opts, quoted, func(w io.Writer) {
				for _, q := range quoted {
					writeLine(w, q)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&name, "dialect", "d", "sqlite", "dialect name")
	return cmd
}
