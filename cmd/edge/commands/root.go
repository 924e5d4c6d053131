package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dataDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "edge",
	Short: "EdgeFactory - 자가 개선 트레이딩 시그널 학습 시스템",
	Long: `EdgeFactory Unified CLI

시그널 랭킹과 결과 피드백으로 스스로 재학습하는 ML 파이프라인.
피처 추출 → 라벨링 → 앙상블 학습 → 과적합 가드 → 랭킹 → 결과 해결.

Usage:
  go run ./cmd/edge [command]

Examples:
  go run ./cmd/edge api
  go run ./cmd/edge train --symbols AAPL,TSLA
  go run ./cmd/edge rank --symbols AAPL --mode aggressive
  go run ./cmd/edge scheduler start
  go run ./cmd/edge status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "CSV 시세 디렉터리 (지정 시 DB 대신 파일 사용)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
