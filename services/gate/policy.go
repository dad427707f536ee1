package gate

import (
	"fmt"
	"math"

	"readgate/models"
)

// MinDwellSeconds computes the dwell requirement for a piece of content:
// base + linear scaling per 100 words, floored at base and capped so the
// gate is never practically unpassable. Zero or negative word counts floor
// to base, which keeps trivially short content from bypassing the gate.
func MinDwellSeconds(policy models.GatePolicy, wordCount int) float64 {
	if wordCount < 0 {
		wordCount = 0
	}

	seconds := policy.MinDwellBaseSeconds + float64(wordCount)/100.0*policy.DwellPerHundredWords
	if seconds < policy.MinDwellBaseSeconds {
		seconds = policy.MinDwellBaseSeconds
	}
	if seconds > policy.MaxDwellSeconds {
		seconds = policy.MaxDwellSeconds
	}
	return seconds
}

// Evaluate is the pure readiness decision: ready iff both the dwell and the
// scroll thresholds are met. Safe to call on every tick.
func Evaluate(progress models.ReadingProgress, policy models.GatePolicy) models.Readiness {
	minSeconds := MinDwellSeconds(policy, progress.WordCount)

	secondsRemaining := minSeconds - progress.SecondsElapsed
	if secondsRemaining < 0 {
		secondsRemaining = 0
	}

	scrollRemaining := policy.MinScrollRatio - progress.ScrollRatio
	if scrollRemaining < 0 {
		scrollRemaining = 0
	}
	scrollPercentRemaining := scrollRemaining * 100

	readiness := models.Readiness{
		Ready:                  secondsRemaining == 0 && scrollRemaining == 0,
		SecondsRemaining:       secondsRemaining,
		ScrollPercentRemaining: scrollPercentRemaining,
	}

	if !readiness.Ready {
		readiness.Message = deficitMessage(secondsRemaining, scrollPercentRemaining)
	}

	return readiness
}

func deficitMessage(secondsRemaining, scrollPercentRemaining float64) string {
	switch {
	case secondsRemaining > 0 && scrollPercentRemaining > 0:
		return fmt.Sprintf("keep reading: %ds and %d%% of the content to go", ceilSeconds(secondsRemaining), ceilPercent(scrollPercentRemaining))
	case secondsRemaining > 0:
		return fmt.Sprintf("keep reading: %ds to go", ceilSeconds(secondsRemaining))
	default:
		return fmt.Sprintf("keep reading: %d%% of the content to go", ceilPercent(scrollPercentRemaining))
	}
}

func ceilSeconds(seconds float64) int {
	return int(math.Ceil(seconds))
}

func ceilPercent(percent float64) int {
	return int(math.Ceil(percent))
}
