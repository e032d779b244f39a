package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/batman-nair/TimeTrak/internal/config"
	"github.com/batman-nair/TimeTrak/internal/presence"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and connectivity",
	Long: `Check that the configuration file is valid, that the storage backend is
reachable and that the presence gateway answers.`,
	Example: `  timetrak -c /etc/timetrak/config.yaml check`,
	RunE:    runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	failed := false
	report := func(name string, err error) {
		if err != nil {
			red.Printf("FAIL")
			fmt.Printf("  %s: %v\n", name, err)
			failed = true
			return
		}
		green.Printf("OK")
		fmt.Printf("    %s\n", name)
	}

	cfg, err := config.Load(configPath)
	report("configuration ("+configPath+")", err)
	if err != nil {
		// Nothing below can run without a valid configuration.
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report(storageCheckName(cfg), checkStorage(cfg))
	report("presence gateway ("+cfg.Presence.GatewayURL+")", checkPresence(ctx, cfg))

	if failed {
		os.Exit(1)
	}
	return nil
}

func storageCheckName(cfg *config.Config) string {
	if cfg.Storage.Type == "redis" {
		return fmt.Sprintf("storage (redis %s:%d)", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port)
	}
	return "storage (bolt " + cfg.Storage.Path + ")"
}

// checkStorage opens the configured backend and closes it again. For bolt
// this verifies the file is writable and not locked by a running server; for
// redis the open itself pings the server.
func checkStorage(cfg *config.Config) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	return store.Close()
}

func checkPresence(ctx context.Context, cfg *config.Config) error {
	// Quiet logger so check output stays readable.
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
	client := presence.NewClient(presence.Config{
		GatewayURL: cfg.Presence.GatewayURL,
		Token:      cfg.Presence.Token,
		Timeout:    parseDuration(cfg.Presence.Timeout, 10*time.Second),
		Retries:    cfg.Presence.Retries,
	}, logger)
	scopes, err := client.Scopes(ctx)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		fmt.Fprintln(os.Stderr, "warning: gateway reports no tracked scopes")
	}
	return nil
}
