package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/edgefactory/internal/contracts"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "랭킹 사이클 1회 실행",
	Long: `시그널 랭킹 사이클을 한 번 실행하고 결과를 출력합니다.

이 명령어는:
- 심볼별 피처 추출 및 양방향(롱/숏) 평가
- 활성 모델 확률 + 규칙 점수 가중 결합
- 스트릭 억제 적용 후 가중 점수 내림차순 정렬
- 모든 시그널을 피드백 스토어에 기록

Example:
  go run ./cmd/edge rank --symbols AAPL,TSLA
  go run ./cmd/edge rank --mode aggressive --data-dir ./bars`,
	RunE: runRank,
}

var (
	rankSymbols []string
	rankMode    string
)

func init() {
	rootCmd.AddCommand(rankCmd)

	// Flags
	rankCmd.Flags().StringSliceVar(&rankSymbols, "symbols", nil, "평가 대상 심볼 (기본: 전체)")
	rankCmd.Flags().StringVar(&rankMode, "mode", "conservative", "랭킹 모드 (conservative|aggressive)")
}

func runRank(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory Signal Ranking ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()
	symbols, err := d.universe(ctx, rankSymbols)
	if err != nil {
		return err
	}

	if active := d.models.Current(); active != nil {
		fmt.Printf("Active model: %s\n", active.Artifact.ModelID)
	} else {
		fmt.Println("No active model: rule-only cold start (probability 0.5)")
	}

	signals, err := d.ranker.RankSignals(ctx, symbols, contracts.RankMode(rankMode))
	if err != nil {
		return fmt.Errorf("run ranking cycle: %w", err)
	}

	if len(signals) == 0 {
		fmt.Println("\nNo signals produced")
		return nil
	}

	fmt.Printf("\n%d signals (top %d published as events):\n\n", len(signals), d.cfg.Ranking.TopN)

	rows := make([][]string, 0, len(signals))
	for i, s := range signals {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			s.Symbol,
			string(s.Side),
			fmt.Sprintf("%.2f", s.WeightedScore),
			fmt.Sprintf("%.1f", s.RuleScore),
			fmt.Sprintf("%.3f", s.MLProbability),
			s.Thesis,
		})
	}
	printTable([]string{"#", "SYMBOL", "SIDE", "SCORE", "RULE", "PROB", "THESIS"}, rows)

	return nil
}
