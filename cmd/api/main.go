package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/core/marketdata"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/store"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	log := logger.New()
	defer log.Sync()
	ctx := logger.WithContext(context.Background(), log)

	// Report store: Postgres when DATABASE_URL is set, files otherwise.
	repo, err := store.Open(ctx, os.Getenv("VALUATION_CACHE_DIR"))
	if err != nil {
		log.Fatalw("failed to open report store", "error", err)
	}
	defer store.Close()

	var quotes marketdata.Provider
	if os.Getenv("VALUATION_LIVE_QUOTES") == "1" {
		quotes = marketdata.NewCachedProvider(marketdata.NewYahooProvider(), 15*time.Minute)
	}

	mux := http.NewServeMux()
	valuation.NewHandler(pipeline.NewPipelineOrchestrator(quotes, repo), repo, log).Register(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("API server starting", "addr", srv.Addr,
			"routes", []string{"POST /api/valuation/dcf", "POST /api/valuation/reverse", "GET /api/valuation/report"})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed to start", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
