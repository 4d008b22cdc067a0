package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var cmdLs = &cobra.Command{
	Use:   "ls [flags] repo-id [path]",
	Short: "List a directory of a library",
	Long: `
The "ls" command lists a directory. A fresh cached listing is printed without
contacting the server, a stale one is revalidated with its content id so an
unchanged directory is not transferred again.
`,
	DisableAutoGenTag: true,
	Args:              cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) > 1 {
			p = args[1]
		}
		return withSession(cmd.Context(), func(s *session) error {
			dirents, err := s.ListDir(cmd.Context(), args[0], cleanPath(p), lsOptions.Refresh)
			if err != nil {
				return err
			}

			tab := newTable()
			for _, d := range dirents {
				name := d.Name
				if d.IsDir() {
					name += "/"
				}
				printRow(tab, d.Type, d.Size, time.Unix(d.MTime, 0), name)
			}
			return tab.Flush()
		})
	},
}

// LsOptions bundles all options for the ls command.
type LsOptions struct {
	Refresh bool
}

var lsOptions LsOptions

func init() {
	cmdRoot.AddCommand(cmdLs)

	f := cmdLs.Flags()
	f.BoolVar(&lsOptions.Refresh, "refresh", false, "revalidate the listing even if it is fresh")
}

func printRow(w io.Writer, cols ...interface{}) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		switch v := c.(type) {
		case time.Time:
			fmt.Fprint(w, v.Format("2006-01-02 15:04"))
		default:
			fmt.Fprint(w, v)
		}
	}
	fmt.Fprintln(w)
}
