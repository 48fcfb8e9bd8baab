// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package app wires the process's components together: store, WebSocket
// hub, LLM SDK adapter, the orchestrator pipeline, and the agent manager,
// then boots the singleton orchestrator row per §3/§8 property 1.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/loomrelay/internal/agentmgr"
	"github.com/teradata-labs/loomrelay/internal/config"
	"github.com/teradata-labs/loomrelay/internal/httpapi"
	"github.com/teradata-labs/loomrelay/internal/llmsdk"
	"github.com/teradata-labs/loomrelay/internal/log"
	"github.com/teradata-labs/loomrelay/internal/orchestrator"
	"github.com/teradata-labs/loomrelay/internal/pgxdriver"
	"github.com/teradata-labs/loomrelay/internal/store"
	"github.com/teradata-labs/loomrelay/internal/summarizer"
	"github.com/teradata-labs/loomrelay/internal/tokenecon"
	"github.com/teradata-labs/loomrelay/internal/wshub"
)

// App holds every long-lived component of one process.
type App struct {
	Config   config.Config
	Store    store.Store
	Pool     *pgxpool.Pool
	Hub      *wshub.Hub
	SDK      llmsdk.Client
	Pipeline *orchestrator.Pipeline
	Manager  *agentmgr.Manager
	Router   http.Handler
	Log      *zap.Logger
}

// New resolves the process's DSN, runs migrations, connects the pool, and
// wires every component. It does not start listening; call Start for that.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := log.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("app: init logging: %w", err)
	}
	logger := log.Logger()

	dsn := pgxdriver.BuildDSN(pgxdriver.PoolConfig{
		DSN: cfg.Database.DSN, Host: cfg.Database.Host, Port: cfg.Database.Port,
		Database: cfg.Database.Name, User: cfg.Database.User, Password: cfg.Database.Password,
		SSLMode: cfg.Database.SSLMode,
	})
	if dsn == "" {
		return nil, fmt.Errorf("app: database configuration requires either dsn or host+name")
	}

	if err := store.Migrate(dsn); err != nil {
		return nil, fmt.Errorf("app: run migrations: %w", err)
	}

	pool, err := pgxdriver.NewPool(ctx, pgxdriver.PoolConfig{
		DSN: dsn, Schema: cfg.Database.Schema,
		MaxConns: cfg.Database.MaxConns, MinConns: cfg.Database.MinConns,
		CommandTimeout: cfg.Database.CommandTimeout(),
	}, logger.Named("pgxdriver"))
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}

	st := store.NewPGStore(pool)

	hub := wshub.New(
		time.Duration(cfg.Server.PingIntervalSeconds)*time.Second,
		time.Duration(cfg.Server.ConnectionTimeoutSeconds)*time.Second,
		logger.Named("wshub"),
	)

	sdk := llmsdk.NewAnthropicClient(llmsdk.AnthropicConfig{
		APIKey:    cfg.LLM.APIKey,
		Timeout:   cfg.LLM.APITimeout(),
	}, logger.Named("llmsdk"))

	orch, err := resolveOrchestrator(ctx, st, cfg)
	if err != nil {
		return nil, err
	}

	economy := buildEconomy(cfg.TokenEconomy)

	mgr := agentmgr.New(st, hub, sdk, summarizer.New(sdk, cfg.LLM.FastModel, logger.Named("summarizer")), agentmgr.Options{
		PrimaryModel: cfg.LLM.PrimaryModel,
		FastModel:    cfg.LLM.FastModel,
		TemplatesDir: cfg.WorkingDir + "/.claude/agents",
		Economy: agentmgr.Economy{
			Enabled: cfg.TokenEconomy.Enabled, MaxContextTokens: cfg.TokenEconomy.MaxContextTokens,
			Limiter: economy.limiter, Costs: economy.costs,
		},
		Log: logger.Named("agentmgr"),
	})

	pipeline := orchestrator.NewPipeline(st, hub, sdk, orch, orchestrator.PipelineOptions{
		PrimaryModel: cfg.LLM.PrimaryModel,
		FastModel:    cfg.LLM.FastModel,
		PremiumModel: cfg.LLM.PremiumModel,
		TrimConfig:   tokenecon.DefaultTrimmerConfig(cfg.TokenEconomy.MaxMessages, cfg.TokenEconomy.MaxContextTokens),
		Cache:        economy.cache,
		Limiter:      economy.limiter,
		Costs:        economy.costs,
		Budget:       economy.budget,
		EconomyEnabled: cfg.TokenEconomy.Enabled,
		Tools:        mgr.Tools(),
		Execute:      mgr.Dispatch,
		Log:          logger.Named("orchestrator"),
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Store: st, Hub: hub, Pipeline: pipeline, Manager: mgr,
		Cache: economy.cache, Limiter: economy.limiter, Costs: economy.costs,
		WorkingDir: cfg.WorkingDir, Log: logger.Named("httpapi"),
	})

	return &App{
		Config: cfg, Store: st, Pool: pool, Hub: hub, SDK: sdk,
		Pipeline: pipeline, Manager: mgr, Log: logger,
		Router: router,
	}, nil
}

// Start begins the hub's keepalive loop and serves HTTP/WS until ctx is
// done, then shuts the listener down gracefully (§4.2, §6.1).
func (a *App) Start(ctx context.Context, addr string) error {
	a.Hub.StartKeepalive()
	defer a.Hub.StopKeepalive()

	srv := &http.Server{Addr: addr, Handler: a.Router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases the process's store connection pool.
func (a *App) Close() {
	a.Store.Close()
}

// economyComponents bundles the token-economy components shared by the
// orchestrator pipeline and the agent manager (§4.4, §4.6).
type economyComponents struct {
	cache   *tokenecon.Cache
	limiter *tokenecon.RateLimiter
	costs   *tokenecon.CostTracker
	budget  *tokenecon.SessionBudget
}

func buildEconomy(cfg config.TokenEconomyConfig) economyComponents {
	if !cfg.Enabled {
		return economyComponents{}
	}
	return economyComponents{
		cache:   tokenecon.NewCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries),
		limiter: tokenecon.NewRateLimiter(cfg.TokensPerMinute, cfg.BackoffThreshold),
		costs:   tokenecon.NewCostTracker(cfg.CostAlertThreshold, cfg.CostCriticalThreshold),
		budget:  tokenecon.NewSessionBudget(cfg.SessionBudgetTokens),
	}
}

// resolveOrchestrator implements §3/§8 property 1's singleton-orchestrator
// boot logic: resolve an existing row when --session is given (fatal if
// unknown), else reuse the active row, else create a fresh one.
func resolveOrchestrator(ctx context.Context, st store.Store, cfg config.Config) (*store.Orchestrator, error) {
	if cfg.ResumeSession != "" {
		orch, err := st.GetOrchestratorBySession(ctx, cfg.ResumeSession)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, fmt.Errorf("app: session %q not found", cfg.ResumeSession)
			}
			return nil, fmt.Errorf("app: resolve session %q: %w", cfg.ResumeSession, err)
		}
		return orch, nil
	}

	if orch, err := st.GetActiveOrchestrator(ctx); err == nil {
		return orch, nil
	} else if err != store.ErrNotFound {
		return nil, fmt.Errorf("app: get active orchestrator: %w", err)
	}

	orch, err := st.CreateOrchestrator(ctx, &store.Orchestrator{
		SystemPrompt: defaultSystemPrompt,
		WorkingDir:   cfg.WorkingDir,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create orchestrator: %w", err)
	}
	return orch, nil
}

const defaultSystemPrompt = "You are the orchestrator of a fleet of worker agents. " +
	"Use your management tools to create, command, monitor, and retire workers " +
	"in service of the user's requests."
