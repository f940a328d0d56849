package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/watchdog/internal/history"
)

type Options struct {
	Username string
	Password string
	Timeout  time.Duration
	// DailyIndex appends the event date (UTC, YYYY.MM.DD) to the index name.
	DailyIndex bool
}

// Sink indexes each event as one document: POST baseURL/index/_doc.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
	opts    Options
}

func New(baseURL, index string, opts Options) *Sink {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Sink{
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		opts:    opts,
	}
}

func (s *Sink) indexFor(e history.Event) string {
	if !s.opts.DailyIndex {
		return s.index
	}
	return s.index + "-" + e.OccurredAt.UTC().Format("2006.01.02")
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.indexFor(e))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.opts.Username != "" {
		req.SetBasicAuth(s.opts.Username, s.opts.Password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}
