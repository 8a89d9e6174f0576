// Command collector runs the receipt-collector / voucher-redeemer core:
// config load, store wiring, recovery, then the two cooperative ticks
// behind a minimal gin health/metrics surface — the same shape as the
// teacher's cmd/billing/main.go.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/chain"
	"github.com/dl-graf/indexer/internal/collector"
	"github.com/dl-graf/indexer/internal/config"
	"github.com/dl-graf/indexer/internal/gateway"
	"github.com/dl-graf/indexer/internal/logging"
	"github.com/dl-graf/indexer/internal/metrics"
	"github.com/dl-graf/indexer/internal/queue"
	"github.com/dl-graf/indexer/internal/recovery"
	"github.com/dl-graf/indexer/internal/redeemer"
	"github.com/dl-graf/indexer/internal/store"
)

func main() {
	debug := os.Getenv("DEBUG") != ""
	log, err := logging.New(debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Persistence ───────────────────────────────────────────────────────────
	db, err := store.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		log.Fatal("open postgres failed", zap.Error(err))
	}
	st := store.New(db)
	if err := st.AutoMigrate(); err != nil {
		log.Fatal("automigrate failed", zap.Error(err))
	}

	// ── Gateway client ────────────────────────────────────────────────────────
	gw, err := gateway.New(cfg.Gateway.Endpoint, time.Duration(cfg.Gateway.TimeoutSec)*time.Second)
	if err != nil {
		log.Fatal("gateway client init failed", zap.Error(err))
	}

	// ── Chain client (allocation-exchange contract + tx manager) ─────────────
	signerKey, err := crypto.HexToECDSA(cfg.Chain.SignerKey)
	if err != nil {
		log.Fatal("invalid CHAIN_SIGNER_KEY", zap.Error(err))
	}
	onchain, err := chain.NewClient(cfg.Chain.RPCURL, cfg.Chain.ContractAddress, cfg.Chain.ChainID, signerKey)
	if err != nil {
		log.Fatal("chain client init failed", zap.Error(err))
	}
	txm := chain.NewSigningTransactionManager(onchain.EthClient())

	threshold, ok := new(big.Int).SetString(cfg.Redemption.Threshold, 10)
	if !ok {
		log.Fatal("invalid VOUCHER_REDEMPTION_THRESHOLD")
	}
	batchThreshold, ok := new(big.Int).SetString(cfg.Redemption.BatchThreshold, 10)
	if !ok {
		log.Fatal("invalid VOUCHER_REDEMPTION_BATCH_THRESHOLD")
	}

	m := metrics.New()
	dq := queue.New()

	batchDelay := time.Duration(cfg.Collector.BatchDelaySec) * time.Second
	col := collector.New(st, gw, dq, m, log, cfg.Collector.ChunkSize, batchDelay)
	red := redeemer.New(st, onchain, txm, redeemer.Config{
		RedemptionThreshold: threshold,
		BatchThreshold:      batchThreshold,
		MaxBatchSize:        cfg.Redemption.MaxBatchSize,
	}, m, log)

	// ── Recovery ──────────────────────────────────────────────────────────────
	if err := recovery.QueuePendingReceiptsFromDatabase(ctx, st, dq, log, batchDelay); err != nil {
		log.Fatal("recovery failed", zap.Error(err))
	}

	// ── Cooperative ticks ─────────────────────────────────────────────────────
	go runTicker(ctx, time.Duration(cfg.Collector.TickIntervalSec)*time.Second, col.Tick)
	go runTicker(ctx, time.Duration(cfg.Redemption.TickIntervalSec)*time.Second, red.Tick)

	// ── HTTP server (health + metrics only; no inbound business API) ─────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// runTicker drives one cooperative handler on interval until ctx is done,
// serializing successive ticks (spec.md §5: one handler at a time).
func runTicker(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

