package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/options-edge-scanner/internal/alerting"
	"github.com/options-edge-scanner/internal/api"
	"github.com/options-edge-scanner/internal/config"
	"github.com/options-edge-scanner/internal/metrics"
	"github.com/options-edge-scanner/internal/provider"
	"github.com/options-edge-scanner/internal/scan"
	"github.com/options-edge-scanner/internal/store"
	"github.com/options-edge-scanner/internal/strategy"
)

var logLevel string

func main() {
	root := &cobra.Command{
		Use:   "options-edge-scanner",
		Short: "Options strategy analysis and opportunity scoring engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")

	root.AddCommand(serveCmd(), scanCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the scan pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log.Info().Int("universe", len(cfg.Scanner.Universe)).Msg("configuration loaded")

			registry := prometheus.NewRegistry()
			collector := metrics.NewCollector(registry)

			client := provider.NewClient(cfg.Provider)
			generator := scan.NewGenerator(scan.HeuristicModel{})
			calculator := strategy.NewCalculator()

			progressCh := make(chan scan.Progress, 100)
			resultCh := make(chan scan.Result, 8)

			orchestrator := scan.NewOrchestrator(
				client,
				generator,
				cfg.Scanner.Universe,
				time.Duration(cfg.Scanner.CooldownMsec)*time.Millisecond,
				collector,
				progressCh,
				resultCh,
			)

			snapshots, err := buildStore(cfg.Store)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer snapshots.Close()

			alertManager := alerting.NewManager(cfg.Alerting, resultCh)
			apiServer := api.NewServer(cfg.API, orchestrator, client, calculator, snapshots, defaultFilters(cfg.Filters), registry, progressCh)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := alertManager.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("alert manager error")
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := apiServer.Run(ctx); err != nil {
					log.Error().Err(err).Msg("API server error")
					cancel()
				}
			}()

			log.Info().Msg("all components started")

			<-sigChan
			log.Info().Msg("shutting down")
			cancel()
			wg.Wait()
			log.Info().Msg("shutdown complete")
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan over the configured universe and print the tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			client := provider.NewClient(cfg.Provider)
			generator := scan.NewGenerator(scan.HeuristicModel{})
			orchestrator := scan.NewOrchestrator(
				client,
				generator,
				cfg.Scanner.Universe,
				time.Duration(cfg.Scanner.CooldownMsec)*time.Millisecond,
				nil, nil, nil,
			)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := orchestrator.Scan(ctx, defaultFilters(cfg.Filters))
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}
}

func printResult(result *scan.Result) {
	fmt.Println(result.Message)
	for _, tier := range []struct {
		name string
		opps []scan.Opportunity
	}{
		{"HIGH", result.Tiers.High},
		{"MEDIUM", result.Tiers.Medium},
		{"LOW", result.Tiers.Low},
		{"NEAR MISS", result.Tiers.NearMiss},
	} {
		if len(tier.opps) == 0 {
			continue
		}
		fmt.Printf("\n%s (%d)\n", tier.name, len(tier.opps))
		for _, o := range tier.opps {
			fmt.Printf("  %3d  %-6s %-20s exp %s  prob %d%%  r/r %-6s loss %s\n",
				o.Score, o.Symbol, o.StrategyName, o.Expiration.Format("2006-01-02"),
				o.Probability, o.RewardRisk, o.MaxLoss)
			if o.NearMissReason != "" {
				fmt.Printf("       near miss: %s\n", o.NearMissReason)
			}
		}
	}
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Backend == "redis" {
		return store.NewRedisStore(cfg)
	}
	return store.NewMemoryStore(), nil
}

func defaultFilters(cfg config.FiltersConfig) scan.Filters {
	types := make([]scan.Archetype, 0, len(cfg.StrategyTypes))
	for _, t := range cfg.StrategyTypes {
		types = append(types, scan.Archetype(t))
	}
	return scan.Filters{
		MinProbability: cfg.MinProbability,
		MaxRisk:        cfg.MaxRisk,
		MinRewardRatio: cfg.MinRewardRatio,
		ExpiryDays:     [2]int{cfg.ExpiryDaysMin, cfg.ExpiryDaysMax},
		StrategyTypes:  types,
	}
}
