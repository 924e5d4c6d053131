package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/edgefactory/internal/retrain"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `재학습 스케줄러를 데몬으로 실행합니다.

등록되는 작업:
- retrain: 재학습 사이클 (기본: 매일 18시, 신규 해결 시그널 수 충족 시)
- resolve-outcomes: 미해결 시그널 결과 판정 (기본: 매일 17시 30분)

Subcommands:
  start - 스케줄러 시작

Example:
  go run ./cmd/edge scheduler start
  go run ./cmd/edge scheduler start --data-dir ./bars`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "스케줄러 시작",
	RunE:  runSchedulerDaemon,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory Scheduler ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()
	log := d.log

	scheduler := retrain.NewScheduler(log)

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

	stopMetrics := startMetricsServer(d)

	scheduler.Start()
	fmt.Printf("\n✅ Scheduler running (retrain: %q, resolve: %q)\n",
		d.cfg.Retrain.Cron, d.cfg.Retrain.ResolveCron)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	scheduler.Stop()

	if stopMetrics != nil {
		if err := stopMetrics(context.Background()); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}

	log.Info("Scheduler stopped")
	return nil
}
