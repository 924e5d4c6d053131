package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/edgefactory/internal/retrain"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "재학습 사이클 1회 실행",
	Long: `전체 재학습 사이클을 한 번 실행합니다.

이 명령어는:
- 심볼별 시세 수집 및 라벨 생성
- 피처 스키마 동결
- 앙상블 학습 (forest / boosting / logistic + Platt 보정)
- 과적합 가드 평가 후 승격 또는 거부

Example:
  go run ./cmd/edge train
  go run ./cmd/edge train --symbols AAPL,TSLA --data-dir ./bars`,
	RunE: runTrain,
}

var trainSymbols []string

func init() {
	rootCmd.AddCommand(trainCmd)

	// Flags
	trainCmd.Flags().StringSliceVar(&trainSymbols, "symbols", nil, "학습 대상 심볼 (기본: 전체)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory Training Cycle ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()
	symbols, err := d.universe(ctx, trainSymbols)
	if err != nil {
		return err
	}

	fmt.Printf("Training on %d symbols...\n\n", len(symbols))

	result, err := d.runner.Run(ctx, symbols)
	if err != nil {
		return fmt.Errorf("run training cycle: %w", err)
	}

	printRunResult(result)
	if result.Final == retrain.StatePromoted {
		return nil
	}
	if result.Err != nil {
		return result.Err
	}
	return fmt.Errorf("candidate rejected by overfit guard")
}

func printRunResult(result *retrain.RunResult) {
	fmt.Printf("Outcome:   %s\n", result.Final)
	if result.ModelID != "" {
		fmt.Printf("Model:     %s\n", result.ModelID)
	}
	fmt.Printf("Duration:  %s\n", result.FinishedAt.Sub(result.StartedAt).Round(timeRound))
	if result.Err != nil {
		fmt.Printf("Error:     %v\n", result.Err)
	}

	if result.Final == retrain.StatePromoted {
		fmt.Println("\n✅ Candidate promoted to ACTIVE")
	} else {
		fmt.Println("\n❌ Cycle did not promote a model")
	}
}
