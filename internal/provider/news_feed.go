package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"newsdroid/internal/domain"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const googleNewsSearchURL = "https://news.google.com/rss/search"

type NewsFeedConfig struct {
	BaseURL    string
	QueryHours int
	MaxItems   int
	Language   string
	Timeout    time.Duration
}

// NewsFeedProvider fetches headlines for a search term from a Google News style RSS search.
type NewsFeedProvider struct {
	client *http.Client
	parser *gofeed.Parser
	tracer trace.Tracer
	cfg    NewsFeedConfig
}

func NewNewsFeedProvider(tracer trace.Tracer, cfg NewsFeedConfig) *NewsFeedProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = googleNewsSearchURL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 40
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &NewsFeedProvider{
		client: &http.Client{Timeout: cfg.Timeout},
		parser: gofeed.NewParser(),
		tracer: tracer,
		cfg:    cfg,
	}
}

// FetchHeadlines returns headlines for term in the order the feed lists them.
func (p *NewsFeedProvider) FetchHeadlines(ctx context.Context, term string) ([]domain.Headline, error) {
	ctx, span := p.tracer.Start(ctx, "news-feed.fetch-headlines")
	defer span.End()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.fetch", fmt.Errorf("search term is required"))
	}
	span.SetAttributes(attribute.String("news.term", term))

	feedURL, err := p.searchURL(term)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.fetch", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.fetch", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.fetch",
			fmt.Errorf("feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	feed, err := p.parser.Parse(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, domain.NewError(domain.KindFeedUnavailable, "news-feed.parse", fmt.Errorf("decode feed payload: %w", err))
	}

	headlines := make([]domain.Headline, 0, min(p.cfg.MaxItems, len(feed.Items)))
	for _, item := range feed.Items {
		if len(headlines) >= p.cfg.MaxItems {
			break
		}
		if item == nil {
			continue
		}
		title := sanitizeText(item.Title, 300)
		if title == "" {
			continue
		}
		published := strings.TrimSpace(item.Published)
		publishedAt := parseRSSDate(published)
		if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
			publishedAt = item.PublishedParsed.UTC()
		}
		headlines = append(headlines, domain.Headline{
			Title:       title,
			Published:   published,
			PublishedAt: publishedAt,
		})
	}
	span.SetAttributes(attribute.Int("news.headlines", len(headlines)))

	return headlines, nil
}

func (p *NewsFeedProvider) searchURL(term string) (string, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	query := term
	if p.cfg.QueryHours > 0 {
		query = fmt.Sprintf("%s when:%dh", term, p.cfg.QueryHours)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("hl", p.cfg.Language)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseRSSDate accepts RFC-2822 style and RFC3339 dates. Anything else yields the zero time.
func parseRSSDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(in[cut]) {
			cut--
		}
		in = in[:cut]
	}
	return in
}
