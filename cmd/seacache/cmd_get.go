package main

import (
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skyline93/seacache/internal/mirror"
)

var cmdGet = &cobra.Command{
	Use:   "get repo-id path",
	Short: "Download a file into the local library copy",
	Long: `
The "get" command makes sure the local copy of a file matches the version on
the server and prints its location. A current copy is not downloaded again.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *session) error {
			r, err := s.repo(ctx, args[0])
			if err != nil {
				return err
			}
			local, err := s.Files.Download(ctx, r.Name, r.ID, cleanPath(args[1]))
			if err != nil {
				return err
			}
			printf("%s\n", local)
			return nil
		})
	},
}

var cmdPut = &cobra.Command{
	Use:   "put [flags] repo-id dir file",
	Short: "Upload a file into a library directory",
	Long: `
The "put" command uploads a local file into a directory of a library. With
--update an existing file is replaced; with --keep the file is also copied
into the local library copy.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *session) error {
			r, err := s.repo(ctx, args[0])
			if err != nil {
				return err
			}
			dir := cleanPath(args[1])
			id, err := s.Files.Upload(ctx, r.Name, r.ID, dir, args[2], putOptions.Update, putOptions.Keep)
			if err != nil {
				return err
			}
			// the parent listing changed
			s.State().Refresh.Invalidate(mirror.DirScope(r.ID, dir))
			printf("%s\t%s\n", path.Join(dir, filepath.Base(args[2])), id)
			return nil
		})
	},
}

// PutOptions bundles all options for the put command.
type PutOptions struct {
	Update bool
	Keep   bool
}

var putOptions PutOptions

func init() {
	cmdRoot.AddCommand(cmdGet)
	cmdRoot.AddCommand(cmdPut)

	f := cmdPut.Flags()
	f.BoolVar(&putOptions.Update, "update", false, "replace an existing file")
	f.BoolVar(&putOptions.Keep, "keep", false, "copy the file into the local library copy")
}
