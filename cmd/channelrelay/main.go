package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ChannelRelay/internal/app"
	"ChannelRelay/internal/config"
	"ChannelRelay/internal/domain"
)

var (
	configPath string
	envFile    string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "channelrelay",
		Short: "Harvests RSS feeds and public Telegram channels, rewrites the best post, and publishes it",
		Long: "channelrelay periodically collects fresh posts from configured RSS feeds and\n" +
			"public Telegram channels, drops everything already published, rewrites the\n" +
			"freshest remaining post with Gemini, and sends it to the broadcast channel.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Extra .env file to load before reading the environment")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Force debug logging")

	root.AddCommand(onceCmd(), daemonCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	_ = godotenv.Load()

	cfg := config.Load(configPath)
	if debug {
		cfg.Logging.Level = "debug"
	}
	return cfg
}

func buildApp(requireCredentials bool) (*app.Application, error) {
	cfg := loadConfig()
	if requireCredentials {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return app.New(cfg, nil)
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single harvest-rewrite-publish tick and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp(true)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.RunOnce(ctx)
		},
	}
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp(true)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.RunDaemon(ctx)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print publication ledger statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Stats only reads the database, so missing API credentials
			// must not get in the way.
			application, err := buildApp(false)
			if err != nil {
				return err
			}
			defer application.Close()

			stats, recent, err := application.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Published posts: %d\n", stats.Total)
			for _, kind := range []domain.SourceKind{domain.SourceFeed, domain.SourceChannel} {
				if count, ok := stats.ByKind[kind]; ok {
					fmt.Printf("  from %-8s %d\n", string(kind)+":", count)
				}
			}
			fmt.Printf("Last 7 days:     %d\n", stats.LastWeek)

			if len(recent) > 0 {
				fmt.Println("\nRecent posts:")
				for _, rec := range recent {
					fmt.Printf("  %s  [%s]  %s\n",
						rec.PublishedAt.Format("2006-01-02 15:04"), rec.Kind, rec.Title)
				}
			}
			return nil
		},
	}
}
