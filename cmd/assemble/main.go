// Command assemble runs one merge of observations, footprints, fluxes and
// boundary conditions described by a YAML run file.
//
// Usage:
//
//	assemble run --run-file run.yaml
//	assemble version
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

	"github.com/couchcryptid/ghg-merge/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/ghg-merge/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ghg-merge/internal/adapter/kafka"
	"github.com/couchcryptid/ghg-merge/internal/adapter/ncstore"
	"github.com/couchcryptid/ghg-merge/internal/averaging"
	"github.com/couchcryptid/ghg-merge/internal/config"
	"github.com/couchcryptid/ghg-merge/internal/observability"
	"github.com/couchcryptid/ghg-merge/internal/pipeline"
	"github.com/couchcryptid/ghg-merge/internal/scenario"
	"github.com/couchcryptid/ghg-merge/internal/version"
	"github.com/spf13/cobra"
)

var (
	runFile string
	repoDir string
	hold    bool
)

var rootCmd = &cobra.Command{
	Use:           "assemble",
	Short:         "Merge greenhouse gas observations with modelled mole fractions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble the datasets described by a run file",
	Long: `Loads service settings from the environment and the run parameters from
--run-file, assembles every site and optionally writes the merged-data file.

With --hold the health, metrics and latest-run endpoints stay up after the run
until the process is interrupted.`,
	RunE: runAssemble,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the code version recorded in run outputs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.Describe(cmd.Context(), repoDir))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "git checkout used to describe the code version")
	runCmd.Flags().StringVar(&runFile, "run-file", "", "path to the YAML run file")
	runCmd.Flags().BoolVar(&hold, "hold", false, "keep serving HTTP endpoints after the run")
	_ = runCmd.MarkFlagRequired("run-file")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("assemble failed", "error", err)
		os.Exit(1)
	}
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	rf, err := config.LoadRunFile(runFile)
	if err != nil {
		return err
	}
	req, err := rf.ToRequest()
	if err != nil {
		return fmt.Errorf("run file %s: %w", runFile, err)
	}

	store := ncstore.New(cfg.DataDir, logger)
	stores := pipeline.Stores{
		Observations:       store,
		Footprints:         store,
		Fluxes:             cache.NewCachedFluxStore(store, cfg.StoreCacheSize, metrics),
		BoundaryConditions: cache.NewCachedBoundaryConditionStore(store, cfg.StoreCacheSize, metrics),
	}
	opts := pipeline.Options{
		SiteConcurrency: cfg.SiteConcurrency,
		CodeVersion:     version.Describe(ctx, repoDir),
		OutputDir:       cfg.OutputDir,
		Augmenter:       averaging.NewAugmenter(store, logger),
		Writer:          ncstore.NewOutputWriter(),
	}

	var notifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		notifier = kafkaadapter.NewNotifier(cfg, logger)
		opts.Notifier = notifier
		logger.Info("run notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	assembler := pipeline.New(stores, scenario.NewBuilder(), logger, metrics, opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, assembler, assembler, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	_, runErr := assembler.Run(ctx, req)

	if hold && runErr == nil {
		logger.Info("holding for http requests", "addr", cfg.HTTPAddr)
		<-ctx.Done()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
