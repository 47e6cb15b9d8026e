package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/controlapi"
)

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running daemon to re-read and recompile its sync manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return exitUsageErr{err}
			}

			client := controlapi.NewClient(controlAddr(cfg))
			diags, err := client.Reload(cmd.Context())
			if err != nil {
				return err
			}
			if len(diags) > 0 {
				for _, d := range diags {
					fmt.Println(d)
				}
				return exitValidationErr{fmt.Errorf("reload rejected: %d diagnostics", len(diags))}
			}

			fmt.Println("syncs reloaded")
			return nil
		},
	}
}
