package labeling

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Builder turns bar series into labeled training examples with forward-looking
// long/short targets.
// ⭐ SSOT: 학습 타깃 생성은 여기서만
//
// Targets look strictly forward: the window for bar i is close[i+1..i+horizon],
// never including bar i itself. Bars without a complete forward window are
// dropped, so the last horizon bars of a series never become examples.
type Builder struct {
	horizon   int
	longThr   float64
	shortThr  float64
	extractor FeatureSource
	logger    zerolog.Logger
}

// FeatureSource provides per-bar feature vectors for a series.
type FeatureSource interface {
	ExtractSeries(bars []contracts.Observation) ([]contracts.FeatureVector, error)
}

// NewBuilder creates a target builder. horizon is the lookforward window in
// bars; longThr/shortThr are fractional profit thresholds (0.02 = +2%).
func NewBuilder(extractor FeatureSource, horizon int, longThr, shortThr float64, log *logger.Logger) *Builder {
	return &Builder{
		horizon:   horizon,
		longThr:   longThr,
		shortThr:  shortThr,
		extractor: extractor,
		logger:    log.Component("labeling"),
	}
}

// Horizon returns the lookforward window in bars.
func (b *Builder) Horizon() int { return b.horizon }

// Build produces labeled examples for every bar that has a complete forward
// window. Feature vectors come from the extractor over the same series.
func (b *Builder) Build(bars []contracts.Observation) ([]contracts.LabeledExample, error) {
	if b.horizon < 1 {
		return nil, fmt.Errorf("labeling: horizon must be >= 1, got %d", b.horizon)
	}
	vectors, err := b.extractor.ExtractSeries(bars)
	if err != nil {
		return nil, fmt.Errorf("labeling: extract features: %w", err)
	}

	// Only bars 0..len-horizon-1 have a full forward window.
	usable := len(bars) - b.horizon
	if usable <= 0 {
		return nil, nil
	}

	examples := make([]contracts.LabeledExample, 0, usable)
	for i := 0; i < usable; i++ {
		ref := bars[i].Close
		if ref == 0 {
			continue
		}
		futureMax, futureMin := bars[i+1].Close, bars[i+1].Close
		for j := i + 2; j <= i+b.horizon; j++ {
			if bars[j].Close > futureMax {
				futureMax = bars[j].Close
			}
			if bars[j].Close < futureMin {
				futureMin = bars[j].Close
			}
		}

		targetLong := 0
		if (futureMax-ref)/ref >= b.longThr {
			targetLong = 1
		}
		targetShort := 0
		if (futureMin-ref)/ref <= -b.shortThr {
			targetShort = 1
		}

		examples = append(examples, contracts.LabeledExample{
			Symbol:      bars[i].Symbol,
			Timestamp:   bars[i].Timestamp,
			Features:    vectors[i],
			TargetLong:  targetLong,
			TargetShort: targetShort,
		})
	}

	b.logger.Debug().
		Int("bars", len(bars)).
		Int("examples", len(examples)).
		Int("horizon", b.horizon).
		Msg("Built labeled examples")
	return examples, nil
}
