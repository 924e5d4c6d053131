package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "미해결 시그널 결과 판정 1회 실행",
	Long: `미해결 시그널을 순회하며 시장이 검증한 결과(WIN/LOSS)를 기록합니다.

목표 수익률 도달 시 즉시 WIN, 관측 구간 만료 시 실현 수익률 부호로 판정.
구간이 경과하지 않은 시그널은 미해결로 유지됩니다.

Example:
  go run ./cmd/edge resolve
  go run ./cmd/edge resolve --data-dir ./bars`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory Outcome Resolution ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	n, err := d.resolver.ResolveDue(cmd.Context())
	if err != nil {
		return fmt.Errorf("resolve outcomes: %w", err)
	}

	fmt.Printf("\n✅ Resolved %d signal(s)\n", n)
	return nil
}
