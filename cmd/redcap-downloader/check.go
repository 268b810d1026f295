package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe API access for every configured token without downloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := a.clients()
			if err != nil {
				return err
			}
			failed := 0
			for _, c := range clients {
				status := "ok"
				if err := c.CheckAccess(cmd.Context()); err != nil {
					status = "failed: " + err.Error()
					failed++
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Token(), status); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tokens cannot access the API", failed, len(clients))
			}
			return nil
		},
	}
}
