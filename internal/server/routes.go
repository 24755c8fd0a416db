package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"tapwar/internal/archive"
	"tapwar/internal/config"
	"tapwar/internal/eventlog"
	"tapwar/internal/logging"
	"tapwar/internal/orchestrator"
	"tapwar/internal/state"
	"tapwar/internal/wshub"
)

// Run wires everything together and serves until interrupted. A store or
// log that is unreachable at startup is fatal; transient failures later are
// absorbed by retries.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := wshub.NewHub(log)

	var (
		store  state.Store
		pub    eventlog.Publisher
		tapSrc eventlog.Source
		rdb    *redis.Client
	)
	usingRedis := cfg.RedisAddr != ""
	if usingRedis {
		rdb = state.NewClient(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("reaching redis at %s: %w", cfg.RedisAddr, err)
		}
		store = state.NewRedisStore(rdb, cfg.SessionTTL, log)
		pub = eventlog.NewRedisPublisher(rdb, log)
		tapSrc = eventlog.NewRedisConsumer(rdb, cfg.ConsumerGroup, consumerName(), log)
		log.Infow("using redis", "addr", cfg.RedisAddr)
	} else {
		// No Redis configured: in-process store and log, single node only.
		ml := eventlog.NewMemoryLog(log)
		store = state.NewMemoryStore()
		pub = ml
		tapSrc = ml
		log.Warnw("REDIS_ADDR not set, running with in-memory state and event log")
	}

	orch := orchestrator.New(store, pub, hub, cfg.LateGameGap, log)
	registerHubMetrics(hub)

	go func() {
		if err := orch.RunTapConsumer(ctx, tapSrc); err != nil {
			log.Errorw("tap consumer stopped", "error", err)
		}
	}()

	if cfg.DatabaseURL != "" {
		if !usingRedis {
			log.Warnw("DATABASE_URL set but archive requires redis streams, archive disabled")
		} else {
			db, err := archive.Connect(cfg.DatabaseURL)
			if err != nil {
				log.Warnw("archive connect failed, running without archive", "error", err)
			} else {
				if err := db.Migrate(); err != nil {
					return fmt.Errorf("migrating archive: %w", err)
				}
				writer := archive.NewWriter(db, log)
				src := eventlog.NewRedisConsumer(rdb, cfg.ArchiveGroup, consumerName(), log)
				go writer.Run(ctx, src, src)
				log.Infow("archive enabled")
			}
		}
	} else {
		log.Infow("DATABASE_URL not set, running without archive")
	}

	srv := &Server{
		Store:        store,
		Orch:         orch,
		Hub:          hub,
		Log:          log.With("component", "server"),
		PingInterval: cfg.PingInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/state", srv.handleState)
	mux.HandleFunc("/tap", srv.handleTap)
	mux.HandleFunc("/ws", srv.handleWS)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Let in-flight writes and broadcasts finish before closing sockets.
	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// consumerName identifies this process inside its consumer group. It must
// be stable across restarts so a restarted process can replay its own
// pending entries.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "tapwar"
	}
	return host
}
