package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/api"
	"github.com/raushankrgupta/meal-planner/apiclient"
	"github.com/raushankrgupta/meal-planner/auth"
	"github.com/raushankrgupta/meal-planner/capture"
	"github.com/raushankrgupta/meal-planner/config"
	"github.com/raushankrgupta/meal-planner/export"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/planner"
	"github.com/raushankrgupta/meal-planner/session"
	"github.com/raushankrgupta/meal-planner/utils"
)

func main() {
	config.LoadConfig()
	logger.InitializeLogger(config.Env)
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := apiclient.New(config.APIURL, nil)
	if err != nil {
		logger.Fatal("Invalid API_URL", zap.String("api_url", config.APIURL), zap.Error(err))
	}

	// The store opens in the background; pages show a loading placeholder
	// until it is ready.
	sessions := session.OpenManager(ctx, openSessionStore)
	sessions.SecureCookie = config.Env == "production"

	var browsers atomic.Pointer[capture.Chain]
	exporter := export.New(api.RenderPlanDocument, func() (capture.Rasterizer, error) {
		chain := capture.Default()
		browsers.Store(chain)
		return chain, nil
	})

	var sinks []export.Sink
	if config.ExportArchive {
		sinks = append(sinks, export.NewS3Sink())
	}
	if config.ExportMail {
		sinks = append(sinks, export.NewMailSink())
	}

	boards := planner.NewRegistry(client)
	server := api.NewServer(sessions, auth.NewService(client, sessions), boards, exporter, sinks...)
	server.AllowedOrigins = config.AllowedOrigins

	httpServer := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweepDashboards(ctx, boards, config.DashboardIdleTTL)

	go func() {
		logger.Info(fmt.Sprintf("Server starting on port %s...", config.Port), zap.String("api_url", client.BaseURL()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	if chain := browsers.Load(); chain != nil {
		chain.Close()
	}
	if utils.Client != nil {
		_ = utils.Client.Disconnect(shutdownCtx)
	}
}

// sweepDashboards drops dashboards of sessions that stopped making requests
// without logging out.
func sweepDashboards(ctx context.Context, boards *planner.Registry, idle time.Duration) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := boards.Sweep(idle); n > 0 {
				logger.Info("Dropped idle dashboards", zap.Int("count", n))
			}
		}
	}
}

func openSessionStore(ctx context.Context) (session.Store, error) {
	switch config.SessionStore {
	case "memory":
		return session.NewMemoryStore(), nil
	case "mongo":
		if err := utils.ConnectMongo(ctx, config.MongoURI); err != nil {
			return nil, err
		}
		coll, err := utils.GetCollection(config.DBName, "sessions")
		if err != nil {
			return nil, err
		}
		return session.NewMongoStore(coll), nil
	case "file", "":
		return session.NewFileStore(config.SessionDir)
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", config.SessionStore)
	}
}
