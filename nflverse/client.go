package nflverse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// DefaultBaseURL is the root of the nflverse-data release downloads.
const DefaultBaseURL = "https://github.com/nflverse/nflverse-data/releases/download"

// ErrMissingColumn is returned when a CSV lacks a required column.
var ErrMissingColumn = errors.New("nflverse: missing column")

// Client fetches nflverse CSV releases.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the release root, e.g. for a mirror or a test
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for DefaultBaseURL.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// record is one CSV row addressed by header name.
type record struct {
	index map[string]int
	row   []string
}

func (r record) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

// num parses a numeric cell. nflverse writes counts as floats ("3.0") and
// missing values as "NA" or blank, which read as zero.
func (r record) num(col string) int {
	v := r.str(col)
	if v == "" || v == "NA" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// fetchCSV streams the CSV at path through fn. required columns must be
// present in the header.
func (c *Client) fetchCSV(ctx context.Context, path string, required []string, fn func(record) error) error {
	url := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("nflverse: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nflverse: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nflverse: get %s: unexpected status %s", path, resp.Status)
	}

	r := csv.NewReader(resp.Body)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("nflverse: read %s header: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("%w %q in %s", ErrMissingColumn, col, path)
		}
	}

	rows := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("nflverse: read %s: %w", path, err)
		}
		if err := fn(record{index: index, row: row}); err != nil {
			return err
		}
		rows++
	}
	c.logger.Debug("fetched nflverse csv", slog.String("path", path), slog.Int("rows", rows))
	return nil
}
