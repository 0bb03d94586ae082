package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spendy/internal/aggregate"
	"spendy/internal/config"
	"spendy/internal/export"
	"spendy/internal/keychain"
	"spendy/internal/ledger"
	"spendy/internal/permission"
	"spendy/internal/source"
	"spendy/internal/store"
	"spendy/internal/tracker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:          "spendy",
		Short:        "Background activity tracker with encrypted local storage",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")

	rootCmd.AddCommand(runCmd(&cfg))
	rootCmd.AddCommand(reportCmd(&cfg))
	rootCmd.AddCommand(exportCmd(&cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spendy: %v\n", err)
		os.Exit(1)
	}
}

// openStore resolves the encryption key and initializes the store,
// migrating a plaintext database if one is found.
func openStore(cfg *config.Config) (*store.Store, error) {
	key, err := keychain.LoadOrCreateKey(cfg.KeyringService, cfg.KeyringAccount)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	return store.Open(cfg.DBPath(), key)
}

func runCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sample foreground activity until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			runner := source.OsascriptRunner{}
			desktop := source.NewDesktop(runner, cfg.SourceTimeout)
			safari := source.NewTabSource(source.Safari, runner, cfg.SourceTimeout, cfg.BrowserCooldown)
			chrome := source.NewTabSource(source.Chrome, runner, cfg.SourceTimeout, cfg.BrowserCooldown)

			trk := tracker.New(tracker.Options{
				Ledger:        ledger.New(st),
				Desktop:       desktop,
				Browsers:      []tracker.TabReader{safari, chrome},
				Idle:          source.NewIdleDetector(cfg.SourceTimeout),
				Interval:      cfg.PollInterval,
				IdleThreshold: cfg.IdleThreshold,
			})

			watcher := permission.NewWatcher(
				permission.ProbeFunc(func(ctx context.Context) permission.Status {
					return permission.Status{
						Accessibility:    desktop.CanReadWindows(ctx),
						SafariAutomation: safari.CanAccess(ctx),
						ChromeAutomation: chrome.CanAccess(ctx),
					}
				}),
				cfg.PermissionPoll,
				func(st permission.Status) {
					slog.Info("permission state",
						"accessibility", st.Accessibility,
						"safari", st.SafariAutomation,
						"chrome", st.ChromeAutomation)
				},
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go watcher.Run(ctx)

			slog.Info("tracking started", "db", cfg.DBPath(), "interval", cfg.PollInterval)
			trk.Run(ctx)
			slog.Info("tracking stopped")
			return nil
		},
	}
}

func reportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print today's per-app and per-site totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			r := aggregate.New(st).Today(time.Now())

			fmt.Printf("Since %s\n\n", r.Since.Format("2006-01-02 15:04"))

			fmt.Println("Apps:")
			if len(r.AppTotals) == 0 {
				fmt.Println("  (no activity)")
			}
			for _, t := range r.AppTotals {
				fmt.Printf("  %-30s %s\n", t.AppName, formatDuration(t.Duration))
			}

			fmt.Println("\nWebsites:")
			if len(r.WebsiteTotals) == 0 {
				fmt.Println("  (no activity)")
			}
			for _, t := range r.WebsiteTotals {
				fmt.Printf("  %-30s %s\n", t.Host, formatDuration(t.Duration))
			}

			fmt.Println("\nTimeline:")
			for _, s := range r.Timeline {
				title := ""
				if s.WindowTitle != nil {
					title = " — " + *s.WindowTitle
				}
				fmt.Printf("  %s  %-20s%s (%s)\n",
					s.Start.Format("15:04:05"), s.AppName, title, formatDuration(s.Duration()))
			}
			return nil
		},
	}
}

func exportCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write today's timeline as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Timeline(aggregate.StartOfDay(time.Now()))
			if err != nil {
				return fmt.Errorf("read timeline: %w", err)
			}
			csv := export.Timeline(sessions)

			if output == "" {
				fmt.Println(csv)
				return nil
			}
			if err := os.WriteFile(output, []byte(csv+"\n"), 0o600); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to a file instead of stdout")
	return cmd
}

// formatDuration renders a duration as h/m/s, dropping empty leading
// units.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
