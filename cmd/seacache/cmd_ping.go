package main

import (
	"time"

	"github.com/spf13/cobra"
)

var cmdPing = &cobra.Command{
	Use:               "ping",
	Short:             "Check that the server is reachable",
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			start := time.Now()
			if err := s.client.Ping(cmd.Context()); err != nil {
				return err
			}
			printf("%v reachable in %v\n", globalConfig.Server, time.Since(start).Round(time.Millisecond))
			return nil
		})
	},
}

func init() {
	cmdRoot.AddCommand(cmdPing)
}
