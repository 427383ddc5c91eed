package signal

import (
	"strings"
	"testing"
	"time"

	"newsdroid/internal/domain"
)

func TestBuildPromptCategorical(t *testing.T) {
	at := time.Date(2026, 3, 1, 11, 50, 0, 0, time.UTC)
	records := []domain.Headline{
		{Title: "SEC approves spot Bitcoin ETF", PublishedAt: at},
		{Title: "Miners\nsell reserves", PublishedAt: at.Add(-5 * time.Minute)},
	}
	got := BuildPrompt("Bitcoin", records, domain.ModeCategorical)

	want := "Assess these news headlines as they pertain to cryptocurrency Bitcoin, " +
		"taking into account their publication date and time for relevance.\n" +
		"Provide a single-word recommendation: 'Buy', 'Neutral', or 'Sell'. Provide only the word.\n\n" +
		"Published: Sun, 01 Mar 2026 11:50:00 +0000. Headline: SEC approves spot Bitcoin ETF\n" +
		"Published: Sun, 01 Mar 2026 11:45:00 +0000. Headline: Miners sell reserves\n"
	if got != want {
		t.Fatalf("unexpected prompt:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildPromptContinuousInstruction(t *testing.T) {
	got := BuildPrompt("Ethereum", []domain.Headline{{Title: "x", PublishedAt: testNow}}, domain.ModeContinuous)
	if !strings.Contains(got, "cryptocurrency Ethereum") || !strings.Contains(got, "between -1.0 (strong sell) and 1.0 (strong buy)") {
		t.Fatalf("unexpected continuous prompt: %s", got)
	}
	if strings.Contains(got, "'Buy'") {
		t.Fatal("continuous prompt must not ask for a word")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	records := []domain.Headline{{Title: "a", PublishedAt: testNow.In(loc)}, {Title: "b", PublishedAt: testNow}}
	first := BuildPrompt("Bitcoin", records, domain.ModeCategorical)
	for i := 0; i < 5; i++ {
		if BuildPrompt("Bitcoin", records, domain.ModeCategorical) != first {
			t.Fatal("prompt is not deterministic")
		}
	}
	if strings.Count(first, "Sun, 01 Mar 2026 12:00:00 +0000") != 2 {
		t.Fatalf("timestamps should render in UTC: %s", first)
	}
}
