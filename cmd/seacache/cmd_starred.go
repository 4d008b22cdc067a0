package main

import (
	"time"

	"github.com/spf13/cobra"
)

var cmdStarred = &cobra.Command{
	Use:               "starred [flags]",
	Short:             "List the starred files",
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			files, err := s.Starred(cmd.Context(), starredOptions.Refresh)
			if err != nil {
				return err
			}

			tab := newTable()
			for _, f := range files {
				p := f.Path
				if f.Dir {
					p += "/"
				}
				printRow(tab, f.RepoID, f.Size, time.Unix(f.MTime, 0), p)
			}
			return tab.Flush()
		})
	},
}

// StarredOptions bundles all options for the starred command.
type StarredOptions struct {
	Refresh bool
}

var starredOptions StarredOptions

func init() {
	cmdRoot.AddCommand(cmdStarred)

	f := cmdStarred.Flags()
	f.BoolVar(&starredOptions.Refresh, "refresh", false, "ignore the refresh TTL and ask the server")
}
