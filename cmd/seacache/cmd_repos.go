package main

import (
	"time"

	"github.com/spf13/cobra"
)

var cmdRepos = &cobra.Command{
	Use:   "repos [flags]",
	Short: "List the libraries of the account",
	Long: `
The "repos" command lists the libraries of the account. A list fetched less
than the refresh TTL ago is served from the cache.
`,
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			repos, err := s.Repos(cmd.Context(), reposOptions.Refresh)
			if err != nil {
				return err
			}

			tab := newTable()
			for _, r := range repos {
				flags := ""
				if r.Encrypted {
					flags = "encrypted"
				}
				printRow(tab, r.ID, r.Name, r.Size, time.Unix(r.MTime, 0), flags)
			}
			return tab.Flush()
		})
	},
}

// ReposOptions bundles all options for the repos command.
type ReposOptions struct {
	Refresh bool
}

var reposOptions ReposOptions

func init() {
	cmdRoot.AddCommand(cmdRepos)

	f := cmdRepos.Flags()
	f.BoolVar(&reposOptions.Refresh, "refresh", false, "ignore the refresh TTL and ask the server")
}
