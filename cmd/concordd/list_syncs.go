package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/controlapi"
)

func listSyncsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-syncs",
		Short: "List the syncs currently installed on a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return exitUsageErr{err}
			}

			client := controlapi.NewClient(controlAddr(cfg))
			views, err := client.Syncs(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tANNOTATIONS\tCONCEPTS\tDEGRADED")
			for _, v := range views {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
					v.Name,
					strings.Join(v.Annotations, ","),
					strings.Join(v.ReferencedConcepts, ","),
					v.Degraded,
				)
			}
			return w.Flush()
		},
	}
}
