package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skyline93/seacache/internal/config"
	"github.com/skyline93/seacache/internal/errors"
)

var version = "0.1.0"

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "seacache",
	Short: "Browse and mirror Seafile libraries",
	Long: `
seacache is a Seafile client that keeps a local cache of library listings and
file copies. Listings are served from the cache while they are fresh and
revalidated against the server otherwise; without network the cache is used
regardless of its age.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		log.SetLevel(cfg.LogLevel)
		globalConfig = cfg
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
		os.Exit(0)
	},
}

var globalConfig config.Config

func init() {
	cobra.OnInitialize(initConfig)

	f := cmdRoot.PersistentFlags()
	f.String("config", "", "config file (default: ~/.config/seacache/config.yaml)")
	f.String("server", "", "server `URL` (default: $SEACACHE_SERVER)")
	f.String("user", "", "account email (default: $SEACACHE_USER)")
	f.String("token", "", "api token (default: $SEACACHE_TOKEN)")
	f.String("data-dir", "", "directory holding the local library copies")
	f.String("cache-dir", "", "directory holding the listing cache and the index")
	f.String("log-level", "", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"server":    "server",
		"user":      "user",
		"token":     "token",
		"data_dir":  "data-dir",
		"cache_dir": "cache-dir",
		"log_level": "log-level",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func initConfig() {
	if cfg := cmdRoot.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(config.ConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warnf("cannot read config: %v", err)
		}
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cmdRoot.ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrNetworkUnavailable):
		fmt.Fprintln(os.Stderr, "server unreachable, only cached data is available")
		os.Exit(3)
	case errors.IsFatal(err):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
