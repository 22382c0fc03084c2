package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"expensinator/internal/amqp"
	"expensinator/internal/categories"
	"expensinator/internal/cli"
	"expensinator/internal/config"
	"expensinator/internal/events"
	"expensinator/internal/log"
	"expensinator/internal/receipt"
	"expensinator/internal/receipt/gemini"
	"expensinator/internal/remote"
	"expensinator/internal/services"
	"expensinator/internal/sheets/google"
	"expensinator/internal/storage"
)

// app wires the components a command needs. Optional integrations are
// created on first use so commands that don't need them never dial out.
type app struct {
	cfg    *config.Config
	logger *log.Logger

	remote     *remote.Client
	bus        *events.Bus
	bridge     *amqp.Client
	svc        *services.ExpenseService
	home       *services.HomeModel
	categories *categories.Repository

	bridgeOnce sync.Once
	draftsOnce sync.Once
	drafts     *storage.SQLiteRepository
}

func newApp(cfg *config.Config, logger *log.Logger) *app {
	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: log.NewTransport(http.DefaultTransport, logger),
	}
	rc, err := remote.NewClient(cfg.BaseURL, remote.WithHTTPClient(httpClient), remote.WithLogger(logger))
	if err != nil {
		logger.Error("Invalid remote configuration", log.FieldError, err)
		os.Exit(1)
	}

	a := &app{cfg: cfg, logger: logger, remote: rc, bus: events.NewBus()}

	a.svc = services.NewExpenseService(rc, events.Fanout{a.bus, remoteEvents{a}}, logger)
	a.home = services.NewHomeModel(a.svc, logger)
	a.categories = categories.NewRepository(rc, cfg.CategoryCacheTTL, logger)
	return a
}

// eventBridge dials the AMQP exchange the first time it is needed. It returns
// nil when AMQP is not configured or unreachable.
func (a *app) eventBridge() *amqp.Client {
	a.bridgeOnce.Do(func() {
		if !a.cfg.AMQPEnabled() {
			return
		}
		bridge, err := amqp.NewClient(context.Background(), a.cfg.AMQPURL, a.cfg.AMQPExchange, a.logger)
		if err != nil {
			// Sharing events is best effort; local commands still work.
			a.logger.Warn("AMQP unavailable, events stay local", log.FieldError, err)
			return
		}
		a.bridge = bridge
	})
	return a.bridge
}

// remoteEvents forwards events to other processes, dialing on the first one.
type remoteEvents struct{ a *app }

func (r remoteEvents) Publish(e events.Event) {
	if bridge := r.a.eventBridge(); bridge != nil {
		bridge.Publish(e)
	}
}

func (a *app) draftStore() *storage.SQLiteRepository {
	a.draftsOnce.Do(func() {
		a.drafts = cli.InitSQLite(a.logger, a.cfg.DraftsDB)
	})
	return a.drafts
}

func (a *app) scanner(ctx context.Context) (receipt.Scanner, error) {
	if !a.cfg.ScannerEnabled() {
		return nil, usagef("receipt scanning needs GEMINI_API_KEY")
	}
	return gemini.NewScanner(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel, a.logger)
}

func (a *app) importer() *receipt.Importer {
	return receipt.NewImporter(a.remote, a.svc, a.cfg.ImportConcurrency, a.logger)
}

func (a *app) sheetsClient(ctx context.Context) (*google.Client, error) {
	if !a.cfg.SheetsEnabled() {
		return nil, usagef("export needs GOOGLE_SPREADSHEET_ID (or use --dry-run)")
	}
	return google.NewClient(ctx, google.Config{
		SpreadsheetID:      a.cfg.GoogleSpreadsheetID,
		SheetName:          a.cfg.GoogleSheetName,
		ServiceAccountJSON: a.cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: a.cfg.GoogleServiceAccountFile,
	}, a.categories, a.logger)
}

// Close releases everything that was opened. Safe to call twice.
func (a *app) Close() error {
	var errs []error
	a.bus.Close()
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
		a.bridge = nil
	}
	if a.drafts != nil {
		errs = append(errs, a.drafts.Close())
		a.drafts = nil
	}
	return errors.Join(errs...)
}
