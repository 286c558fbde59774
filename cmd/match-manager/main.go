// cmd/match-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fostermatch/internal/batch"
	"fostermatch/internal/common/aws"
	"fostermatch/internal/common/camunda"
	"fostermatch/internal/common/config"
	"fostermatch/internal/common/database"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/common/observability"
	"fostermatch/internal/matching"
	"fostermatch/internal/service"
	"fostermatch/internal/store"
	"fostermatch/pkg/registry"

	rm "fostermatch/internal/workers/placement/recalculate-matches"
	rc "fostermatch/internal/workers/placement/record-changed"
	rmn "fostermatch/internal/workers/placement/run-matching-now"
	ums "fostermatch/internal/workers/placement/update-match-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting match manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("match-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional pre-filter) ---
	var candidateIndex *store.CandidateIndex
	if cfg.Matching.UseSearchIndex {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		candidateIndex = store.NewCandidateIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Build the matching pipeline ---
	cache := store.NewCache(redisClient.Client, cfg.Matching.CacheTTL(), log)
	pgStore := store.NewPostgresStore(pg.DB, cache, candidateIndex, log)

	aggregator := matching.NewAggregator(cfg.Matching.ClampScores)
	matcher := matching.NewMatcher(pgStore, aggregator, log)

	var notifier batch.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifier = batch.NewAWSNotifier(cfg.Notifications, sesClient, snsClient, log)
	}

	engine := batch.NewEngine(matcher, pgStore, cache, notifier, cfg.Matching, log)
	engine.RestoreState(ctx)

	scheduler := batch.NewScheduler(engine, cache, cfg.Matching.Debounce(), log)
	defer scheduler.Stop()

	svc := service.New(matcher, engine, scheduler, pgStore, log)

	// --- Register workers against the task manifest ---
	manifest := registry.Default()
	var jobWorkers []*camunda.Worker

	if wcfg := cfg.Workers[rmn.TaskType]; wcfg.Enabled {
		requireManifestEntry(manifest, rmn.TaskType, zapLog)
		handler := rmn.NewHandler(
			&rmn.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			svc, log,
		)
		jobWorkers = append(jobWorkers,
			camunda.NewWorker(zeebeClient, rmn.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := cfg.Workers[rm.TaskType]; wcfg.Enabled {
		requireManifestEntry(manifest, rm.TaskType, zapLog)
		handler := rm.NewHandler(
			&rm.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			svc, log,
		)
		jobWorkers = append(jobWorkers,
			camunda.NewWorker(zeebeClient, rm.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := cfg.Workers[rc.TaskType]; wcfg.Enabled {
		requireManifestEntry(manifest, rc.TaskType, zapLog)
		handler := rc.NewHandler(
			&rc.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			svc, log,
		)
		jobWorkers = append(jobWorkers,
			camunda.NewWorker(zeebeClient, rc.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := cfg.Workers[ums.TaskType]; wcfg.Enabled {
		requireManifestEntry(manifest, ums.TaskType, zapLog)
		handler := ums.NewHandler(
			&ums.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			svc, log,
		)
		jobWorkers = append(jobWorkers,
			camunda.NewWorker(zeebeClient, ums.TaskType, wcfg, handler.Handle, zapLog))
	}

	zapLog.Info("All placement workers registered")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/batch/status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(svc.GetBatchStatus(r.Context()))
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	scheduler.Stop()
	for _, w := range jobWorkers {
		w.Close()
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Match manager stopped gracefully")
}

func requireManifestEntry(manifest *registry.TaskRegistry, taskType string, log *zap.Logger) {
	if manifest.Find(taskType) == nil {
		log.Fatal("task type missing from manifest", zap.String("taskType", taskType))
	}
}
