package delay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultDuration = 5 * time.Second
	MaxDuration     = 24 * time.Hour
)

// DelayParams takes either Duration in milliseconds or Amount with a Unit of
// seconds, minutes or hours.
type DelayParams struct {
	Duration *float64 `json:"duration"`
	Amount   float64  `json:"amount"`
	Unit     string   `json:"unit"`
}

func (p DelayParams) wait() (time.Duration, error) {
	if p.Duration != nil {
		if *p.Duration < 0 {
			return 0, fmt.Errorf("duration cannot be negative")
		}
		return time.Duration(*p.Duration * float64(time.Millisecond)), nil
	}

	if p.Amount == 0 && p.Unit == "" {
		return DefaultDuration, nil
	}

	if p.Amount < 0 {
		return 0, fmt.Errorf("amount cannot be negative")
	}

	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(p.Unit)) {
	case "ms", "millisecond", "milliseconds":
		unit = time.Millisecond
	case "", "s", "second", "seconds":
		unit = time.Second
	case "m", "minute", "minutes":
		unit = time.Minute
	case "h", "hour", "hours":
		unit = time.Hour
	default:
		return 0, fmt.Errorf("unsupported delay unit %q", p.Unit)
	}

	return time.Duration(p.Amount * float64(unit)), nil
}

type DelayExecutor struct {
	maxDuration time.Duration
	now         func() time.Time
}

type DelayExecutorDependencies struct {
	MaxDuration time.Duration
	Clock       func() time.Time
}

func NewDelayExecutor(deps DelayExecutorDependencies) *DelayExecutor {
	maxDuration := deps.MaxDuration
	if maxDuration <= 0 {
		maxDuration = MaxDuration
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &DelayExecutor{
		maxDuration: maxDuration,
		now:         now,
	}
}

func (e *DelayExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params DelayParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	wait, err := params.wait()
	if err != nil {
		return nil, err
	}

	if wait > e.maxDuration {
		return nil, fmt.Errorf("delay %s exceeds maximum %s", wait, e.maxDuration)
	}

	log.Debug().Str("node_id", input.NodeID).Dur("duration", wait).Msg("Delaying flow")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
	}

	output := map[string]any{}
	if m, ok := input.Input.(map[string]any); ok {
		for key, value := range m {
			output[key] = value
		}
	} else if input.Input != nil {
		output["data"] = input.Input
	}

	output["_delay"] = map[string]any{
		"durationMs":  wait.Milliseconds(),
		"completedAt": e.now().UTC().Format(time.RFC3339Nano),
	}

	return output, nil
}
