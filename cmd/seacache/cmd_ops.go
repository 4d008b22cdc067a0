package main

import (
	"context"
	"path"

	"github.com/spf13/cobra"

	"github.com/skyline93/seacache/internal/errors"
)

var cmdMkdir = &cobra.Command{
	Use:               "mkdir repo-id path",
	Short:             "Create a directory",
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, name := splitPath(args[1])
		return withSession(cmd.Context(), func(s *session) error {
			return s.Sync.CreateDir(cmd.Context(), args[0], dir, name)
		})
	},
}

var cmdTouch = &cobra.Command{
	Use:               "touch repo-id path",
	Short:             "Create an empty file",
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, name := splitPath(args[1])
		return withSession(cmd.Context(), func(s *session) error {
			return s.Sync.CreateFile(cmd.Context(), args[0], dir, name)
		})
	},
}

var cmdRename = &cobra.Command{
	Use:               "rename repo-id path new-name",
	Short:             "Rename a file or directory",
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := cleanPath(args[1])
		return withSession(ctx, func(s *session) error {
			isDir, err := s.isDir(ctx, args[0], p)
			if err != nil {
				return err
			}
			return s.Sync.Rename(ctx, args[0], p, args[2], isDir)
		})
	},
}

var cmdRm = &cobra.Command{
	Use:               "rm repo-id path",
	Short:             "Delete a file or directory",
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := cleanPath(args[1])
		return withSession(ctx, func(s *session) error {
			isDir, err := s.isDir(ctx, args[0], p)
			if err != nil {
				return err
			}
			return s.Sync.Delete(ctx, args[0], p, isDir)
		})
	},
}

var cmdCp = &cobra.Command{
	Use:   "cp src-repo-id src-path dst-repo-id dst-dir",
	Short: "Copy a file or directory",
	Long: `
The "cp" command copies an entry into a directory, possibly of another
library. The destination listing is refreshed afterwards.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDir, name := splitPath(args[1])
		return withSession(cmd.Context(), func(s *session) error {
			return s.Sync.Copy(cmd.Context(), args[0], srcDir, name, args[2], cleanPath(args[3]))
		})
	},
}

var cmdMv = &cobra.Command{
	Use:   "mv [flags] src-repo-id src-path dst-repo-id dst-dir",
	Short: "Move a file or directory",
	Long: `
The "mv" command moves an entry into a directory, possibly of another
library. Source and destination listings are refreshed afterwards.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDir, name := splitPath(args[1])
		return withSession(cmd.Context(), func(s *session) error {
			return s.Sync.Move(cmd.Context(), args[0], srcDir, name, args[2], cleanPath(args[3]), mvOptions.Batch)
		})
	},
}

// MvOptions bundles all options for the mv command.
type MvOptions struct {
	Batch bool
}

var mvOptions MvOptions

func init() {
	cmdRoot.AddCommand(cmdMkdir, cmdTouch, cmdRename, cmdRm, cmdCp, cmdMv)

	f := cmdMv.Flags()
	f.BoolVar(&mvOptions.Batch, "batch", false, "use the batch file operation endpoint")
}

func splitPath(p string) (dir, name string) {
	p = cleanPath(p)
	dir, name = path.Split(p)
	return cleanPath(dir), name
}

// isDir looks p up in the listing of its parent.
func (s *session) isDir(ctx context.Context, repoID, p string) (bool, error) {
	dir, name := splitPath(p)
	if name == "" {
		return false, errors.Fatal("cannot operate on the library root")
	}
	dirents, err := s.ListDir(ctx, repoID, dir, false)
	if err != nil {
		return false, err
	}
	for _, d := range dirents {
		if d.Name == name {
			return d.IsDir(), nil
		}
	}
	return false, errors.Fatalf("%v not found in %v", name, dir)
}
