package main

import (
	"github.com/spf13/cobra"
)

var cmdResolve = &cobra.Command{
	Use:   "resolve repo-id",
	Short: "Print the local directory of a library",
	Long: `
The "resolve" command prints the local directory holding the copy of a
library, creating it on first use. Libraries with the same name get
numbered directories.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *session) error {
			r, err := s.repo(ctx, args[0])
			if err != nil {
				return err
			}
			dir, err := s.Resolver.Resolve(ctx, r.ID, r.Name)
			if err != nil {
				return err
			}
			printf("%s\n", dir)
			return nil
		})
	},
}

func init() {
	cmdRoot.AddCommand(cmdResolve)
}
