package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetcast/internal/specification"
	"github.com/JonMunkholm/sheetcast/internal/template"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check TEMPLATE...",
		Short: "Check templates and print their columns",
		Long: `Load each template, compile it against the built-in types and print the
columns a sheet must provide, in order.`,
		Example: `  sheetcast check templates/*.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := template.NewConfig(nil)
			out := cmd.OutOrStdout()

			for _, path := range args {
				tpl, err := template.LoadFile(path)
				if err != nil {
					return err
				}
				spec, err := tpl.Apply(cfg)
				if err != nil {
					return fmt.Errorf("template %s: %w", tpl.Name(), err)
				}

				fmt.Fprintf(out, "%s: %d columns\n", tpl.Name(), spec.Len())
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, c := range spec.Columns() {
					slot := "-"
					if c.Index != specification.NoIndex {
						slot = fmt.Sprint(c.Index)
					}
					req := "optional"
					if c.Required {
						req = "required"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Key, slot, c.Header, req)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
