package signal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"newsdroid/internal/domain"
)

// ParseResponse maps raw oracle text onto a signal for mode.
// Categorical replies must be exactly Buy, Neutral or Sell. Unlike a plain map
// lookup on the raw reply, surrounding whitespace is trimmed first, so "  Sell\n"
// parses while "sell" and "Sell." do not.
// Continuous replies must be a float literal and are clamped to [-1, 1].
func ParseResponse(raw string, mode domain.SignalMode) (domain.Signal, error) {
	text := strings.TrimSpace(raw)
	switch mode {
	case domain.ModeCategorical:
		switch domain.Category(text) {
		case domain.CategoryBuy, domain.CategoryNeutral, domain.CategorySell:
			return domain.Categorical(domain.Category(text)), nil
		}
		return domain.Neutral(mode), domain.NewError(domain.KindParseError, "signal.parse", fmt.Errorf("unexpected recommendation %q", truncate(text, 64)))
	case domain.ModeContinuous:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil && !isRangeErr(err) {
			return domain.Neutral(mode), domain.NewError(domain.KindParseError, "signal.parse", fmt.Errorf("value %q: %w", truncate(text, 64), err))
		}
		if math.IsNaN(v) {
			return domain.Neutral(mode), domain.NewError(domain.KindParseError, "signal.parse", fmt.Errorf("value %q is not a number", truncate(text, 64)))
		}
		return domain.Continuous(clamp(v, -1, 1)), nil
	default:
		return domain.Neutral(domain.ModeCategorical), domain.NewError(domain.KindParseError, "signal.parse", fmt.Errorf("unknown signal mode %q", mode))
	}
}

// isRangeErr reports overflow; ParseFloat then returns ±Inf, which clamps.
func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
