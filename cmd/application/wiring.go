package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"

	"gomarket_mdm/config"
	"gomarket_mdm/config/values"
	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/acquisition/pullers"
	"gomarket_mdm/internal/marketplace"
	"gomarket_mdm/internal/marketplace/auth"
	"gomarket_mdm/internal/reconcile"
	"gomarket_mdm/metrics"
	"gomarket_mdm/pkg/dbconnect/postgres"
	"gomarket_mdm/pkg/logger"
	"gomarket_mdm/pkg/middleware"
)

func loadConfig() (*config.AppConfig, error) {
	return config.LoadConfig(configFile)
}

func newLogger(prefix string) logger.Logger {
	return logger.NewWriterLogger(os.Stderr, prefix)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// startMetrics поднимает /metrics, если задан metrics.addr. Сервер живёт до отмены ctx.
func startMetrics(ctx context.Context, cfg *config.AppConfig, log logger.Logger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			log.Log("metrics server stopped: %v", err)
		}
	}()
}

func openDB(cfg *config.AppConfig) (*sql.DB, func(), error) {
	if !cfg.Postgres.Enabled() {
		return nil, nil, fmt.Errorf("postgres is not configured (set POSTGRES_* or DATABASE_URL)")
	}
	conn := postgres.NewPgConnector(&cfg.Postgres, newLogger("[Postgres] "))
	db, err := conn.Connect()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = conn.Close() }, nil
}

func controllerOptions(cfg *config.AppConfig) acquisition.Options {
	opts := acquisition.DefaultOptions()
	opts.Retries = cfg.Pull.Retries
	opts.BaseDelay = cfg.Pull.BaseDelay
	opts.Deadline = cfg.Pull.Deadline
	opts.ProgressInterval = cfg.Pull.ProgressInterval
	opts.SampleLimit = cfg.Pull.SampleLimit
	return opts
}

func newController(cfg *config.AppConfig) (*acquisition.Controller, error) {
	log := newLogger("[PullController] ")
	chain := acquisition.NewPullerChain(newLogger("[PullerChain] "))

	client := middleware.NewHTTPClient(cfg.Pull.Deadline, newLogger("[HTTP] "), cfg.Debug)
	registrations := map[acquisition.Kind]acquisition.Puller{
		acquisition.KindHTTP: pullers.NewHTTPPuller(client, cfg.Pull.SampleLimit, newLogger("[HTTPPuller] ")),
		acquisition.KindSFTP: pullers.NewSFTPPuller(newLogger("[SFTPPuller] ")),
		acquisition.KindFile: pullers.NewFilePuller(cfg.Pull.UploadDir, newLogger("[FilePuller] ")),
	}
	for _, kind := range []acquisition.Kind{acquisition.KindHTTP, acquisition.KindSFTP, acquisition.KindFile} {
		if err := chain.Register(kind, registrations[kind]); err != nil {
			return nil, err
		}
	}
	return acquisition.NewController(chain, acquisition.LogSink(log), log), nil
}

func targetsFrom(catalog values.Catalog) []reconcile.TargetFieldSpec {
	if len(catalog.Targets) == 0 {
		return reconcile.DefaultTargets()
	}
	return lo.Map(catalog.Targets, func(t values.TargetField, _ int) reconcile.TargetFieldSpec {
		return reconcile.TargetFieldSpec{
			ID:          t.ID,
			Name:        t.Name,
			Required:    t.Required,
			Type:        t.Type,
			Description: t.Description,
			Aliases:     t.Aliases,
		}
	})
}

func templatesFrom(catalog values.Catalog) []reconcile.Template {
	return lo.Map(catalog.Templates, func(t values.MappingTemplate, _ int) reconcile.Template {
		return reconcile.Template{
			Name: t.Name,
			Mappings: lo.Map(t.Mappings, func(p values.TemplatePair, _ int) reconcile.FieldMapping {
				return reconcile.FieldMapping{SourceField: p.Source, TargetField: p.Target}
			}),
		}
	})
}

func rulesFrom(catalog values.Catalog) []marketplace.CategoryRule {
	return lo.Map(catalog.RestrictedCategories, func(r values.CategoryRule, _ int) marketplace.CategoryRule {
		return marketplace.CategoryRule{Match: r.Match, Reason: r.Reason}
	})
}

// newBatchClient собирает цепочку живой запрос -> симуляция. Без учётных данных
// живой запрос сразу отказывает, и все результаты приходят симулированными.
func newBatchClient(cfg *config.AppConfig) *marketplace.BatchClient {
	mc := cfg.Marketplace
	client := middleware.NewHTTPClient(mc.RequestTimeout, newLogger("[HTTP] "), cfg.Debug)

	tokens := auth.NewTokenCache(
		auth.NewHTTPAuthorizer(client, mc.AuthURL, newLogger("[TokenCache] ")),
		mc.TokenSafetyMargin,
		newLogger("[TokenCache] "),
	)
	creds := auth.Credentials{ClientID: mc.ClientID, ClientSecret: mc.ClientSecret, RefreshToken: mc.RefreshToken}
	caller := marketplace.NewHTTPCaller(client, mc.Endpoint, mc.MarketplaceID, mc.SellerID, newLogger("[Marketplace] "))

	lookup := marketplace.NewFallbackLookup(
		marketplace.NewLiveLookup(tokens, creds, caller, newLogger("[Marketplace] ")),
		marketplace.NewSimulatedLookup(rulesFrom(cfg.Catalog)),
		newLogger("[Fallback] "),
	)
	return marketplace.NewBatchClient(lookup, mc.BatchSize, mc.InterCallDelay, newLogger("[BatchClient] "))
}
