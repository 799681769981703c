// Command ingestd is the ingestion engine's process entrypoint: it wires
// the block-subscription pool, the §4.3 consumer catalogue, the
// Reconciler, the holder score engine, the SOL/USD refresher, and the
// /healthz, /health and /metrics surface into one running process, then
// blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"token-ingest-engine/internal/config"
	"token-ingest-engine/internal/consumers"
	"token-ingest-engine/internal/enrich"
	"token-ingest-engine/internal/feed"
	"token-ingest-engine/internal/health"
	"token-ingest-engine/internal/metrics"
	"token-ingest-engine/internal/reconciler"
	"token-ingest-engine/internal/rpc"
	"token-ingest-engine/internal/score"
	"token-ingest-engine/internal/solusd"
	"token-ingest-engine/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

// solUsdPriceAccount is the Pyth mainnet SOL/USD price account. Operators
// running against devnet or a replay feed override it with PYTH_SOL_USD_ACCOUNT.
const solUsdPriceAccount = "H6ARHf6YXhGYeQfUzQNGk6rDNnLBQKrenN712K4AQJEG"

func main() {
	setupLogger()
	log.Info().Msg("ingestd starting")

	cfg, err := config.NewManager(os.Getenv("INGEST_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.StoreURL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	metricsReg := metrics.New(reg)
	st.SetMetrics(metricsReg)

	rpcClient := rpc.NewClient(cfg.RPCURL(), "")

	priceAccount := os.Getenv("PYTH_SOL_USD_ACCOUNT")
	if priceAccount == "" {
		priceAccount = solUsdPriceAccount
	}
	refresher := solusd.New(rpcClient, st, solusd.DefaultConfig(priceAccount))

	feedConn, err := dialFeed(cfg.FeedURL(), cfg.FeedToken())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial feed endpoint")
	}
	defer feedConn.Close()

	initialBackoff, maxBackoff := cfg.BackoffRange()
	feedPool := feed.NewClient(feedConn, initialBackoff, maxBackoff)

	rc := reconciler.New(st, reconcilerConfig(cfg))
	rc.SetMetrics(metricsReg)

	venues := cfg.Venues()
	catalogue := []*consumers.Consumer{
		consumers.NewMintDetector(feedPool, rc, venues.RaydiumLaunchpadProgram),
		consumers.NewLaunchpadAccount(feedPool, rc, venues.RaydiumLaunchpadProgram),
		consumers.NewLaunchpadTransactions(feedPool, rc, venues.RaydiumLaunchpadProgram),
		consumers.NewPumpFunTrade(feedPool, rc, venues.PumpFunProgram),
		consumers.NewPumpFunBondingCurveAccount(feedPool, rc, venues.PumpFunProgram),
		consumers.NewGraduationDetector(feedPool, rc, venues.MigrationProgram, store.VenuePumpSwap),
		consumers.NewPumpSwapPoolCreation(feedPool, rc, venues.PumpSwapProgram),
		consumers.NewPumpSwapTradePrice(feedPool, rc, venues.PumpSwapProgram),
	}
	for _, c := range catalogue {
		c.Metrics = metricsReg
	}

	enrichClient := enrich.New(enrich.DefaultConfig("https://api.shyft.to", cfg.EnrichKey()))
	scoreEngine := score.New(st, enrichClient, scoreConfig(cfg), time.Now().UnixNano())
	scoreEngine.SetMetrics(metricsReg)

	checker := health.NewChecker(15*time.Second,
		health.StoreCheck("store", st.Ping),
		health.RPCCheck("chain-rpc", cfg.RPCURL()),
	)
	healthCfg := cfg.Get().Health
	healthSrv := health.NewServer(checker, metrics.Handler(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker.Start(ctx)
	go refresher.Run(ctx)
	go rc.Run(ctx)
	go scoreEngine.RunHolderAnalysis(ctx)

	for _, c := range catalogue {
		go runConsumer(ctx, c)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", healthCfg.ListenHost, healthCfg.ListenPort)
		log.Info().Str("addr", addr).Msg("health server listening")
		if err := healthSrv.Listen(addr); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	time.Sleep(time.Second) // best-effort window for consumers to release streams

	_ = healthSrv.Shutdown()
	feedPool.CloseAll()
	log.Info().Msg("goodbye")
}

func runConsumer(ctx context.Context, c *consumers.Consumer) {
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("consumer", c.Name).Msg("consumer exited")
	}
}

func reconcilerConfig(cfg *config.Manager) reconciler.Config {
	c := reconciler.DefaultConfig()
	c.BatchTimeout = cfg.BatchFlushTimeout()
	c.PoolDebounce = cfg.PoolDebounce()
	rcfg := cfg.Get().Reconciler
	if rcfg.BatchSize > 0 {
		c.BatchSize = rcfg.BatchSize
	}
	return c
}

func scoreConfig(cfg *config.Manager) score.Config {
	c := score.DefaultConfig()
	holder := cfg.Get().Holder
	c.Budget = score.BudgetConfig{
		MonthlyCap:  holder.Budget,
		TargetPct:   holder.TargetPct,
		HardStopPct: holder.HardStopPct,
	}
	rl := cfg.Get().RateLimit
	c.RateLimit = score.RateLimitConfig{PerMinute: rl.PerMinute, PerSecond: rl.PerSecond}
	return c
}

// tokenCredentials attaches the feed auth token to every RPC as metadata,
// since the subscription endpoint authenticates over the gRPC channel
// rather than per-HTTP-request like internal/enrich and internal/rpc do.
type tokenCredentials struct {
	token string
}

func (t tokenCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + t.token}, nil
}

func (t tokenCredentials) RequireTransportSecurity() bool {
	return false
}

func dialFeed(addr, token string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenCredentials{token: token}))
	}
	return grpc.NewClient(addr, opts...)
}

var _ credentials.PerRPCCredentials = tokenCredentials{}

func setupLogger() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
