// Package salesforce implements the remote upsert capability against the
// Salesforce REST API (sObject Collections).
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/crmimport/internal/core"
)

const (
	// DefaultAPIVersion is the REST API version used when none is configured.
	DefaultAPIVersion = "59.0"
	// MaxCollectionSize is the sObject Collections per-request record limit.
	MaxCollectionSize = 200
)

// Client talks to one Salesforce org. It is safe for sequential use by a
// single run; requests are paced by an optional rate limiter.
type Client struct {
	http        *http.Client
	instanceURL string
	apiVersion  string
	limiter     *rate.Limiter
	batchSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion sets the REST API version ("59.0").
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v = strings.TrimPrefix(strings.TrimSpace(v), "v"); v != "" {
			c.apiVersion = v
		}
	}
}

// WithRateLimit paces requests to rps per second with the given burst.
// rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBatchSize caps records per request. Values outside 1..200 are ignored.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= MaxCollectionSize {
			c.batchSize = n
		}
	}
}

// New creates a client for instanceURL. httpClient must add authorization;
// see NewFromSession.
func New(instanceURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		http:        httpClient,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		apiVersion:  DefaultAPIVersion,
		batchSize:   MaxCollectionSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromSession creates a client that authorizes with the session token.
// base supplies the transport and timeout and may be nil.
func NewFromSession(ctx context.Context, s *Session, base *http.Client, opts ...Option) *Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(s.Token))
	if base != nil {
		httpClient.Timeout = base.Timeout
	}
	return New(s.InstanceURL, httpClient, opts...)
}

// SObject binds the client to one object as a core.Upserter.
func (c *Client) SObject(name string) core.Upserter {
	return core.UpserterFunc(func(ctx context.Context, records []core.Record, field string) ([]core.UpsertResult, error) {
		return c.Upsert(ctx, name, records, field)
	})
}

// Upsert inserts or updates records of object keyed by externalIDField.
// Records are sent in requests of at most the batch size and results are
// returned in input order. A failed request stops the call; when earlier
// requests were already committed the error is a *core.PartialError
// carrying their results.
func (c *Client) Upsert(ctx context.Context, object string, records []core.Record, externalIDField string) ([]core.UpsertResult, error) {
	results := make([]core.UpsertResult, 0, len(records))
	for start := 0; start < len(records); start += c.batchSize {
		end := min(start+c.batchSize, len(records))
		part, err := c.upsertCollection(ctx, object, records[start:end], externalIDField)
		if err != nil {
			err = fmt.Errorf("records %d-%d: %w", start+1, end, err)
			if len(results) > 0 {
				return nil, &core.PartialError{Results: results, Err: err}
			}
			return nil, err
		}
		results = append(results, part...)
	}
	return results, nil
}

type collectionRequest struct {
	AllOrNone bool             `json:"allOrNone"`
	Records   []map[string]any `json:"records"`
}

type attributes struct {
	Type string `json:"type"`
}

func (c *Client) upsertCollection(ctx context.Context, object string, records []core.Record, externalIDField string) ([]core.UpsertResult, error) {
	body := collectionRequest{Records: make([]map[string]any, len(records))}
	for i, rec := range records {
		m := make(map[string]any, len(rec)+1)
		m["attributes"] = attributes{Type: object}
		for k, v := range rec {
			m[k] = v
		}
		body.Records[i] = m
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	endpoint := fmt.Sprintf("%s/services/data/v%s/composite/sobjects/%s/%s",
		c.instanceURL, c.apiVersion, url.PathEscape(object), url.PathEscape(externalIDField))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", object, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	slog.Debug("salesforce upsert",
		"object", object,
		"records", len(records),
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var results []core.UpsertResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode upsert response: %w", err)
	}
	if len(results) != len(records) {
		return nil, fmt.Errorf("remote returned %d results for %d records", len(results), len(records))
	}
	return results, nil
}
