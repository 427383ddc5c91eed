package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Headline is a single news item returned by a feed.
// A zero PublishedAt means the upstream timestamp was missing or unparsable.
type Headline struct {
	Title       string    `json:"title"`
	Published   string    `json:"published"`
	PublishedAt time.Time `json:"published_at"`
}

// RecencyWindow is the maximum age of a headline eligible for a prompt.
// Zero minutes disables the age cut.
type RecencyWindow struct {
	Minutes int `json:"minutes"`
}

func (w RecencyWindow) Duration() time.Duration {
	return time.Duration(w.Minutes) * time.Minute
}

func (w RecencyWindow) PassThrough() bool {
	return w.Minutes <= 0
}

// SignalMode selects the signal representation for a deployment.
type SignalMode string

const (
	ModeCategorical SignalMode = "categorical"
	ModeContinuous  SignalMode = "continuous"
)

func (m SignalMode) IsValid() bool {
	return m == ModeCategorical || m == ModeContinuous
}

type Category string

const (
	CategoryBuy     Category = "Buy"
	CategoryNeutral Category = "Neutral"
	CategorySell    Category = "Sell"
)

// Score maps a category onto the order-size hint used by executors.
func (c Category) Score() int {
	switch c {
	case CategoryBuy:
		return 1
	case CategorySell:
		return -1
	default:
		return 0
	}
}

// Signal is a tagged trading direction. Category is set only in categorical
// mode and Value only in continuous mode.
type Signal struct {
	Mode     SignalMode `json:"mode"`
	Category Category   `json:"category,omitempty"`
	Value    float64    `json:"value"`
}

func Categorical(c Category) Signal {
	return Signal{Mode: ModeCategorical, Category: c, Value: float64(c.Score())}
}

func Continuous(v float64) Signal {
	return Signal{Mode: ModeContinuous, Value: v}
}

// Neutral returns the conservative signal for mode.
func Neutral(mode SignalMode) Signal {
	if mode == ModeContinuous {
		return Continuous(0)
	}
	return Categorical(CategoryNeutral)
}

// Numeric returns +1/0/-1 for categorical signals and the bounded value otherwise.
func (s Signal) Numeric() float64 {
	if s.Mode == ModeCategorical {
		return float64(s.Category.Score())
	}
	return s.Value
}

func (s Signal) String() string {
	if s.Mode == ModeCategorical {
		return fmt.Sprintf("%s (%+d)", s.Category, s.Category.Score())
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// Report is one evaluated pipeline run with the metadata publishers need.
type Report struct {
	RunID         string        `json:"run_id"`
	Coin          string        `json:"coin"`
	Signal        Signal        `json:"signal"`
	Fallback      bool          `json:"fallback"`
	FallbackKind  ErrorKind     `json:"fallback_kind,omitempty"`
	FallbackError string        `json:"fallback_error,omitempty"`
	// Cancelled marks a run abandoned by its caller. Such reports carry no signal worth publishing.
	Cancelled     bool          `json:"cancelled,omitempty"`
	HeadlinesSeen int           `json:"headlines_seen"`
	HeadlinesUsed int           `json:"headlines_used"`
	OracleCalled  bool          `json:"oracle_called"`
	RawResponse   string        `json:"raw_response,omitempty"`
	Model         string        `json:"model,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Duration      time.Duration `json:"duration_ns"`
}
