package main

import (
	"io"

	"github.com/hatlonely/tql/compiler"
	"github.com/spf13/cobra"
)

type validateResult struct {
	Valid   bool   `json:"valid"`
	Dialect string `json:"dialect,omitempty"`
	Naming  string `json:"naming,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Check that a compiler config file loads and its dialect is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compiler.NewCompilerFromFile(args[0])
			result := validateResult{Valid: err == nil}
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Dialect = c.Dialect().Name()
				result.Naming = c.Options().Naming
			}

			if outErr := output(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				if result.Valid {
					writeLine(w, "ok", "dialect="+result.Dialect, "naming="+result.Naming)
				}
			}); outErr != nil {
				return outErr
			}
			return err
		},
	}
}
