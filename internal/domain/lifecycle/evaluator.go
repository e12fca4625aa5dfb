package lifecycle

import (
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Evaluator classifies unmatched entities with a fixed configuration.
type Evaluator struct {
	config tolerance.Config
}

// NewEvaluator creates a new evaluator with the given config
func NewEvaluator(config tolerance.Config) *Evaluator {
	return &Evaluator{config: config.Sanitized()}
}

func (e *Evaluator) rematch(anchor time.Time) *RematchHint {
	return &RematchHint{
		AnchorDate: tolerance.Day(anchor),
		DaysBefore: e.config.Lifecycle.RematchDaysBefore,
		DaysAfter:  e.config.Lifecycle.RematchDaysAfter,
	}
}
