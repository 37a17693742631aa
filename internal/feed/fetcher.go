package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	myerrors "github.com/samhoang/myrepo/internal/errors"
	"github.com/samhoang/myrepo/internal/plugin"
)

// Status reports the outcome of one feed in a fetch pass
type Status struct {
	URL     string
	Kept    int   // records added to the result
	Dropped int   // duplicates, nameless and non-object entries
	Err     error // non-nil when the feed was skipped
}

// Result is the flattened output of a fetch pass
type Result struct {
	Records []plugin.Record
	Feeds   []Status
}

// Failed returns the feeds that were skipped
func (r *Result) Failed() []Status {
	var failed []Status
	for _, s := range r.Feeds {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// Fetcher retrieves feeds one at a time, in index order
type Fetcher struct {
	client     *http.Client
	retries    int
	newBackOff func() backoff.BackOff
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithRetries sets how many times a transient failure is retried
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithBackOff overrides the retry backoff policy
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		f.newBackOff = fn
	}
}

// NewFetcher creates a fetcher using client for every request
func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  client,
		retries: 1,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves every URL and returns the deduplicated records in feed
// order then intra-feed order. A failing feed is logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) *Result {
	result := &Result{}
	seen := make(map[string]struct{})

	for i, url := range urls {
		status := Status{URL: url}
		logger := log.WithFields(log.Fields{"feed": url, "index": i})

		items, skipped, err := f.fetchOne(ctx, url)
		if err != nil {
			logger.WithError(err).Warn("Skipping feed")
			status.Err = err
			result.Feeds = append(result.Feeds, status)
			continue
		}
		status.Dropped = skipped

		for _, item := range items {
			if !item.HasName() {
				logger.Warn("Skipping entry without a Name")
				status.Dropped++
				continue
			}

			item[plugin.KeyURL] = url
			hash := plugin.Identify(url, item.Name())
			if _, dup := seen[hash]; dup {
				status.Dropped++
				continue
			}
			seen[hash] = struct{}{}

			item[plugin.KeyHash] = hash
			item[plugin.KeyFavorite] = false
			result.Records = append(result.Records, item)
			status.Kept++
		}

		logger.WithFields(log.Fields{
			"kept":    status.Kept,
			"dropped": status.Dropped,
		}).Debug("Fetched feed")
		result.Feeds = append(result.Feeds, status)
	}

	return result
}

// fetchOne returns the decoded records of url and how many elements were
// skipped because they were not objects
func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]plugin.Record, int, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), uint64(f.retries)), ctx)
	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{"feed": url, "wait": wait}).WithError(err).Debug("Retrying feed")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, 0, myerrors.NewFeedError(url, "get", err)
	}

	records, skipped, err := decodeFeed(body)
	if err != nil {
		return nil, 0, myerrors.NewFeedError(url, "parse", err)
	}
	return records, skipped, nil
}

// decodeFeed parses a JSON array of objects, skipping non-object elements.
// Numbers are kept as json.Number so they survive re-encoding verbatim.
func decodeFeed(body []byte) ([]plugin.Record, int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, 0, myerrors.ErrInvalidFeed
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", myerrors.ErrInvalidFeed, err)
	}

	records := make([]plugin.Record, 0, len(elements))
	skipped := 0
	for i, raw := range elements {
		rec, err := DecodeRecord(raw)
		if err != nil {
			log.WithField("element", i).WithError(err).Warn("Skipping non-object feed entry")
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// DecodeRecord decodes one JSON object into a record, preserving numbers
func DecodeRecord(raw []byte) (plugin.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rec plugin.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("null entry")
	}
	return rec, nil
}
