package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/controlapi"
)

func inspectFlowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-flow <flow>",
		Short: "Print the action-log records and sync-firing edges for a flow in append order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return exitUsageErr{err}
			}

			client := controlapi.NewClient(controlAddr(cfg))
			view, err := client.Flow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(view.Records) == 0 {
				fmt.Println("no records for this flow")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tKIND\tCONCEPT\tACTION\tSYNC\tPARENT\tID")
			for _, rec := range view.Records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.Timestamp,
					rec.Kind,
					rec.Concept,
					rec.Action,
					rec.Sync,
					rec.Parent,
					rec.ID,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(view.Edges) == 0 {
				return nil
			}
			fmt.Println()
			ew := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(ew, "TRIGGER\tSYNC\tINVOCATION")
			for _, e := range view.Edges {
				fmt.Fprintf(ew, "%s\t%s\t%s\n", e.TriggerID, e.SyncName, e.InvocationID)
			}
			return ew.Flush()
		},
	}
}
