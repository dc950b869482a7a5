package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradelink/internal/broker"
	"tradelink/internal/comm"
	"tradelink/internal/config"
	"tradelink/internal/domain"
	"tradelink/internal/engine"
	"tradelink/internal/store"
	"tradelink/internal/util"
	"tradelink/internal/venue"
)

func main() {
	cfgPath := "config/tradelink.yaml"
	if p := os.Getenv("TRADELINK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	session, err := buildSession(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build venue session: %v", err)
	}

	adapter := broker.New(session, broker.Options{
		Account:    cfg.Venue.Account,
		Commission: buildScheme(cfg.Trading.Commission),
		Logger:     logger,
	})
	for code, cc := range cfg.Trading.Instruments {
		adapter.SetCommission(code, buildScheme(cc))
	}

	var journal *store.SQLiteStore
	if cfg.Journal.SQLitePath != "" {
		journal, err = store.NewSQLiteStore(cfg.Journal.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()
	}

	risk := engine.NewRiskManager(cfg.Trading.MaxPositionPct, cfg.Trading.MaxDailyLossPct)

	var orders store.OrderStore
	var execs store.ExecutionStore
	if journal != nil {
		orders = journal
		execs = journal
	}
	eng := engine.New(adapter, orders, execs, risk, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		log.Fatalf("failed to start broker: %v", err)
	}
	defer adapter.Stop()

	logger.Info("tradelink started",
		"venue", cfg.Venue.Kind,
		"account", cfg.Venue.Account,
		"cash", adapter.Cash(),
		"value", adapter.Value())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "realized_pnl", eng.RealizedPnL())
			exportExecutions(cfg, journal, logger)
			return
		case <-ticker.C:
			for _, o := range eng.Tick(ctx) {
				logger.Info("order update",
					"venue_id", o.VenueID,
					"symbol", o.Instrument.Code,
					"status", string(o.Status),
					"filled", o.FilledSize)
			}
		}
	}
}

// buildSession constructs the venue session named by the config.
func buildSession(cfg *config.Config, logger *slog.Logger) (venue.Session, error) {
	switch cfg.Venue.Kind {
	case "alpaca":
		return venue.NewAlpacaSession(
			cfg.Venue.Alpaca.APIKey,
			cfg.Venue.Alpaca.APISecret,
			cfg.Venue.Alpaca.BaseURL,
			logger,
		), nil
	case "gateway":
		return venue.NewGatewaySession(cfg.Venue.Gateway.URL, cfg.Venue.Gateway.Token, logger), nil
	case "mock":
		if cfg.Venue.Account == "" {
			return venue.NewMockSession(), nil
		}
		return venue.NewMockSession(venue.Account{ID: cfg.Venue.Account, Cash: 100000, NetWorth: 100000}), nil
	default:
		return nil, fmt.Errorf("unknown venue kind %q", cfg.Venue.Kind)
	}
}

// buildScheme converts a commission config block into a scheme. A zero block
// yields nil, which leaves commission resolution to the adapter's defaults.
func buildScheme(cc config.CommissionConfig) domain.CommissionInfo {
	switch cc.Scheme {
	case "stock":
		return comm.NewStockScheme(cc.Rate, cc.Percent)
	case "futures":
		return comm.NewFuturesScheme(cc.Rate, cc.Mult)
	default:
		return nil
	}
}

// exportExecutions copies the journaled execution history to Parquet on
// shutdown when an export directory is configured.
func exportExecutions(cfg *config.Config, journal *store.SQLiteStore, logger *slog.Logger) {
	if journal == nil || cfg.Journal.ExportDir == "" {
		return
	}

	rows, err := journal.AllExecutions(context.Background())
	if err != nil {
		logger.Warn("reading executions for export failed", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	exporter := store.NewParquetExporter(cfg.Journal.ExportDir)
	if err := exporter.Export(rows); err != nil {
		logger.Warn("exporting executions failed", "error", err)
		return
	}
	logger.Info("exported executions", "count", len(rows), "dir", cfg.Journal.ExportDir)
}
