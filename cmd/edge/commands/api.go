package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/edgefactory/internal/api"
	"github.com/wonny/edgefactory/internal/api/handlers"
	"github.com/wonny/edgefactory/internal/retrain"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 랭킹 사이클 트리거 및 시그널 이력 조회 제공
- 모델/스케줄러 상태 조회 제공
- WebSocket 이벤트 스트림 제공
- 재학습/결과해결 스케줄러 백그라운드 실행

Endpoints:
  GET  /health                             - Health check
  POST /api/signals/rank                   - 랭킹 사이클 실행
  GET  /api/signals                        - 시그널 이력 조회
  GET  /api/model/status                   - 활성 모델 상태
  GET  /api/model/checks                   - 과적합 체크 이력
  GET  /api/scheduler/status               - 재학습 사이클 상태
  GET  /api/scheduler/jobs/{name}/history  - 작업 실행 이력
  POST /api/scheduler/jobs/{name}/run      - 작업 즉시 실행
  GET  /api/events/ws                      - 이벤트 WebSocket

Example:
  go run ./cmd/edge api
  go run ./cmd/edge api --port 8090 --data-dir ./bars`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiNoScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
	apiCmd.Flags().BoolVar(&apiNoScheduler, "no-scheduler", false, "백그라운드 스케줄러 비활성화")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory API Server ===")

	// 1. Wire components
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}
	log := d.log

	// 2. Background scheduler (retrain + outcome resolution)
	scheduler := retrain.NewScheduler(log)
	if !apiNoScheduler {
		retrainJob := retrain.NewRetrainJob(d.cfg.Retrain, d.runner, d.store,
			func() []string {
				symbols, err := d.universe(context.Background(), nil)
				if err != nil {
					log.WithError(err).Warn("No universe for scheduled retrain")
					return nil
				}
				return symbols
			}, log)
		if err := scheduler.AddJob(retrainJob); err != nil {
			return fmt.Errorf("register retrain job: %w", err)
		}
		if err := scheduler.AddJob(retrain.NewResolveJob(d.cfg.Retrain.ResolveCron, d.resolver, retrainJob)); err != nil {
			return fmt.Errorf("register resolve job: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// 3. Handlers and router
	signalHandler := handlers.NewSignalHandler(d.ranker, d.store, log)
	modelHandler := handlers.NewModelHandler(d.models, d.history, log)
	schedulerHandler := handlers.NewSchedulerHandler(d.runner, scheduler, log)
	eventFeed := api.NewEventFeed(d.bus, log)

	router := api.NewRouter(signalHandler, modelHandler, schedulerHandler, eventFeed, log)

	// 4. Metrics server
	stopMetrics := startMetricsServer(d)

	// 5. Start server with graceful shutdown
	server := api.New(d.cfg, log, router)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if stopMetrics != nil {
		if err := stopMetrics(ctx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}

	log.Info("Server stopped")
	return nil
}
