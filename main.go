// sysreport samples host load on a fixed interval and keeps a rolling,
// classified report of it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/vesaa/sysreport/internal/agent"
	"github.com/vesaa/sysreport/internal/config"
	"github.com/vesaa/sysreport/internal/server"
	"github.com/vesaa/sysreport/internal/store"
)

const asciiLogo = `
 ┌─┐┬ ┬┌─┐┬─┐┌─┐┌─┐┌─┐┬─┐┌┬┐
 └─┐└┬┘└─┐├┬┘├┤ ├─┘│ │├┬┘ │
 └─┘ ┴ └─┘┴└─└─┘┴  └─┘┴└─ ┴
`

const version = "v0.1.0"

func printBanner(mode string) {
	fmt.Print(asciiLogo, "\n")
	fmt.Printf("  ► sysreport %s  |  Mode: %s\n\n", version, mode)
}

func main() {
	root := &cobra.Command{
		Use:   "sysreport",
		Short: "Periodic host load sampler with a rolling classified report",
		Long: `sysreport samples memory, CPU, network throughput and established
HTTP(S) connections, keeps the latest rows in a capped rolling store,
archives evicted rows and groups live connections by remote domain.`,
		SilenceUsage: true,
	}

	// ── run subcommand ────────────────────────────────────────────────────────
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Sample continuously until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("RUN")

			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.db.Close()

			fmt.Printf("  ✓ Interval:    %ds\n", env.cfg.IntervalSeconds)
			fmt.Printf("  ✓ Store cap:   %d rows\n", env.cfg.StoreCap)
			fmt.Printf("  ✓ Database:    %s\n\n", env.cfg.DBPath)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return env.agent.Run(ctx)
		},
	}
	addCollectorFlags(runCmd)

	// ── once subcommand ───────────────────────────────────────────────────────
	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Take a single sample, persist it and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.db.Close()

			ctx := context.Background()
			res := env.agent.Tick(ctx, 1)
			if !res.Flushed {
				res.Errors = env.agent.Flush(ctx)
			}
			fmt.Printf("RAM %.2f GB  CPU %.2f%%  NET %.2f MB/s  CONN %d  (%d rows, %d domains)\n",
				res.Sample.RAMGB, res.Sample.CPUPct, res.Sample.NetMBps, res.Sample.ConnCount,
				res.Classification.Rows, len(res.Domains))
			return errors.Join(res.Errors...)
		},
	}
	addCollectorFlags(onceCmd)

	// ── serve subcommand ──────────────────────────────────────────────────────
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the persisted report over HTTP (JSON API + /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SERVE")

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := server.OpenReader(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening report database (run the collector first): %w", err)
			}
			defer db.Close()

			auth := server.NewTokenAuth(cfg.Report.JWTSecret, cfg.TokenTTL())

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery())
			server.RegisterReportRoutes(engine, db, auth, logger)

			addr := cfg.ReportAddr()
			fmt.Printf("  ✓ Report viewer → http://%s/api/store\n", addr)
			fmt.Printf("  ✓ Metrics       → http://%s/metrics\n", addr)
			if auth == nil {
				fmt.Printf("  ! report.jwt_secret is empty: /api is unauthenticated\n\n")
			} else {
				fmt.Printf("  ✓ /api requires a bearer token (sysreport token)\n\n")
			}

			srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	// ── token subcommand ──────────────────────────────────────────────────────
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the report viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			auth := server.NewTokenAuth(cfg.Report.JWTSecret, cfg.TokenTTL())
			if auth == nil {
				return errors.New("report.jwt_secret is not set")
			}
			subject, _ := cmd.Flags().GetString("subject")
			token, err := auth.Generate(subject)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().String("subject", "viewer", "Token subject")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print sysreport version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sysreport %s\n", version)
		},
	}

	root.AddCommand(runCmd, onceCmd, serveCmd, tokenCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCollectorFlags(cmd *cobra.Command) {
	cmd.Flags().Int("interval", 0, "Seconds between samples (overrides interval_seconds)")
	cmd.Flags().Int("cap", 0, "Rolling store capacity (overrides store_cap)")
	cmd.Flags().String("db", "", "Database path (overrides db_path)")
	cmd.Flags().Int("flush-every", 0, "Persist every N ticks (overrides flush_every)")
}

// loadConfig reads config, applies CLI flag overrides and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.IntervalSeconds, _ = flags.GetInt("interval")
	}
	if flags.Changed("cap") {
		cfg.StoreCap, _ = flags.GetInt("cap")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("flush-every") {
		cfg.FlushEvery, _ = flags.GetInt("flush-every")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

type collectorEnv struct {
	cfg   *config.Config
	db    *server.DB
	agent *agent.Agent
}

// setup builds the collector: it probes host access, opens the database
// and restores the persisted window. Any failure here is fatal.
func setup(cmd *cobra.Command) (*collectorEnv, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	host := agent.NewHostProvider()
	sampler := agent.NewSampler(host, cfg.Ports, cfg.CPUWindow(), cfg.NetWindow(), logger)
	if err := sampler.Probe(ctx); err != nil {
		return nil, fmt.Errorf("cannot read host metrics: %w", err)
	}
	logger.Info("host", "system", host.Describe(ctx))

	db, err := server.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	aggregator := agent.NewDomainAggregator(agent.NewDNSResolver(cfg.ResolveTimeout()))
	a := agent.New(sampler, aggregator, db, store.New(cfg.StoreCap), agent.Options{
		Interval:   cfg.Interval(),
		FlushEvery: cfg.FlushEvery,
	}, logger)
	if err := a.Restore(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &collectorEnv{cfg: cfg, db: db, agent: a}, nil
}
