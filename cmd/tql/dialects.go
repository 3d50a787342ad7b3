package main

import (
	"io"

	"github.com/hatlonely/tql/dialect"
	"github.com/spf13/cobra"
)

func newDialectsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List built-in dialects and their aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Name    string `json:"name"`
				Dialect string `json:"dialect"`
			}
			var entries []entry
			for _, name := range dialect.Builtin() {
				d, err := dialect.New(name)
				if err != nil {
					return err
				}
				entries = append(entries, entry{Name: name, Dialect: d.Name()})
			}
			return output(cmd.OutOrStdout(), opts, entries, func(w io.Writer) {
				for _, e := range entries {
					if e.Name == e.Dialect {
						writeLine(w, e.Name)
					} else {
						writeLine(w, e.Name, "->", e.Dialect)
					}
				}
			})
		},
	}
}
