package signal

import (
	"fmt"
	"strings"
	"time"

	"newsdroid/internal/domain"
)

const (
	categoricalInstruction = "Provide a single-word recommendation: 'Buy', 'Neutral', or 'Sell'. Provide only the word."
	continuousInstruction  = "Provide a single number between -1.0 (strong sell) and 1.0 (strong buy), where 0.0 is neutral. Provide only the number."
)

// BuildPrompt renders the oracle prompt. Output is byte-identical for identical input.
func BuildPrompt(coin string, records []domain.Headline, mode domain.SignalMode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess these news headlines as they pertain to cryptocurrency %s, ", coin)
	b.WriteString("taking into account their publication date and time for relevance.\n")
	if mode == domain.ModeContinuous {
		b.WriteString(continuousInstruction)
	} else {
		b.WriteString(categoricalInstruction)
	}
	b.WriteString("\n\n")
	for _, r := range records {
		fmt.Fprintf(&b, "Published: %s. Headline: %s\n", r.PublishedAt.UTC().Format(time.RFC1123Z), oneLine(r.Title))
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
