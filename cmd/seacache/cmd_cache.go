package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdCache = &cobra.Command{
	Use:               "cache",
	Short:             "Maintain the listing cache",
	DisableAutoGenTag: true,
}

var cmdCacheGC = &cobra.Command{
	Use:   "gc",
	Short: "Delete unreferenced cache data",
	Long: `
The "cache gc" command deletes listing blobs no directory refers to and all
temporary files.
`,
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			n, err := s.GC(cmd.Context())
			if err != nil {
				return err
			}
			log.Infof("removed %d unreferenced blobs", n)
			return nil
		})
	},
}

var cmdCacheClear = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached listings",
	Long: `
The "cache clear" command drops the cached listings and the library list of
the account. Local file copies are kept.
`,
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			return s.ClearCache(cmd.Context())
		})
	},
}

var cmdCacheFiles = &cobra.Command{
	Use:               "files",
	Short:             "List the local file copies and their versions",
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			files, err := s.Files.CachedFiles(cmd.Context())
			if err != nil {
				return err
			}
			tab := newTable()
			for _, f := range files {
				printRow(tab, f.RepoName, f.Path, f.FileID, f.LocalPath)
			}
			return tab.Flush()
		})
	},
}

func init() {
	cmdRoot.AddCommand(cmdCache)
	cmdCache.AddCommand(cmdCacheGC, cmdCacheClear, cmdCacheFiles)
}
