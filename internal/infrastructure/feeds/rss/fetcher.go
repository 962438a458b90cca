// Package rss fetches market chatter from per-origin RSS endpoints and
// normalizes items into the common raw feed shape. The item guid rides along
// as the provider id so downstream dedup keys on it.
package rss

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/resilience"
)

const maxFeedBytes = 4 << 20

type rssEnvelope struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid" json:"guid"`
	Title       string `xml:"title" json:"title"`
	Description string `xml:"description" json:"description"`
	Link        string `xml:"link" json:"link"`
	PubDate     string `xml:"pubDate" json:"pub_date"`
}

// Fetcher pulls one origin's feed. The URL template carries a %s placeholder
// that receives the query-escaped ticker.
type Fetcher struct {
	origin      string
	urlTemplate string
	client      *http.Client
	executor    *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(origin, urlTemplate string, options Options) *Fetcher {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		origin:      origin,
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

func (f *Fetcher) Origin() string {
	return f.origin
}

func (f *Fetcher) Fetch(ctx context.Context, ticker string) ([]domain.RawFeedItem, error) {
	endpoint := fmt.Sprintf(f.urlTemplate, url.QueryEscape(ticker))

	var body []byte
	call := func(callCtx context.Context) error {
		var err error
		body, err = f.get(callCtx, endpoint)
		return err
	}

	var err error
	if f.executor != nil {
		err = f.executor.Execute(ctx, "rss.fetch."+f.origin, call, classifyFetchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "fetch feed "+f.origin, err)
	}

	var envelope rssEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "decode feed "+f.origin, err)
	}

	items := make([]domain.RawFeedItem, 0, len(envelope.Channel.Items))
	for _, it := range envelope.Channel.Items {
		items = append(items, normalizeItem(it))
	}
	return items, nil
}

func (f *Fetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed responded %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}

func normalizeItem(it rssItem) domain.RawFeedItem {
	raw, _ := json.Marshal(it)
	return domain.RawFeedItem{
		ProviderID:  strings.TrimSpace(it.GUID),
		Title:       strings.TrimSpace(it.Title),
		Summary:     strings.TrimSpace(it.Description),
		URL:         strings.TrimSpace(it.Link),
		PublishedAt: parsePubDate(it.PubDate),
		Raw:         raw,
	}
}

func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
}
