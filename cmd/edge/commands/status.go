package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "활성 모델 및 학습 이력 조회",
	Long: `활성 모델과 최근 과적합 체크 이력을 출력합니다.

Example:
  go run ./cmd/edge status
  go run ./cmd/edge status --checks 20`,
	RunE: runStatus,
}

var statusChecks int

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().IntVar(&statusChecks, "checks", 5, "표시할 과적합 체크 수")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== EdgeFactory Status ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	active := d.models.Current()
	if active == nil {
		fmt.Println("\nActive model:  none (cold start, rule-only ranking)")
	} else {
		fmt.Println("\nActive model:")
		fmt.Printf("  Model ID:        %s\n", active.Artifact.ModelID)
		fmt.Printf("  Schema version:  %s\n", active.Artifact.SchemaVersion)
		fmt.Printf("  Trained at:      %s\n", active.Artifact.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Features:        %d\n", len(active.Schema.FeatureNames))
		fmt.Printf("  Train score:     %.4f\n", active.Artifact.Metrics.TrainScore)
		fmt.Printf("  Val score:       %.4f\n", active.Artifact.Metrics.ValidationScore)
	}

	checks, err := d.history.LastN(context.Background(), statusChecks)
	if err != nil {
		return fmt.Errorf("read overfit history: %w", err)
	}
	if len(checks) == 0 {
		fmt.Println("\nNo training runs recorded yet")
		return nil
	}

	fmt.Printf("\nLast %d overfit checks (newest first):\n\n", len(checks))
	rows := make([][]string, 0, len(checks))
	for _, c := range checks {
		flag := ""
		if c.Flagged {
			flag = "⚠ FLAGGED"
		}
		rows = append(rows, []string{
			c.ModelID,
			fmt.Sprintf("%.4f", c.TrainScore),
			fmt.Sprintf("%.4f", c.ValidationScore),
			fmt.Sprintf("%+.4f", c.Delta),
			flag,
		})
	}
	printTable([]string{"MODEL", "TRAIN", "VAL", "DELTA", ""}, rows)

	return nil
}
