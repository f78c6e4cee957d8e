// Package ssllabs is a minimal client for the SSL Labs v3 assessment
// API, covering the analyze endpoint the scan orchestrator drives.
package ssllabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// DefaultBaseURL is the public SSL Labs v3 API endpoint.
const DefaultBaseURL = "https://api.ssllabs.com/api/v3"

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client; tests point it at a local
// server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the SSL Labs analyze API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client. An empty baseURL selects the public API.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// analyzeResponse is the wire shape of an analyze reply, reduced to the
// fields the orchestrator consumes.
type analyzeResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
	Endpoints     []struct {
		Grade string `json:"grade"`
		ETA   int    `json:"eta"`
	} `json:"endpoints"`
}

// Analyze issues one GET against the analyze endpoint for host. Each
// call is non-blocking with respect to the remote assessment: the reply
// reflects the assessment's current status.
func (c *Client) Analyze(ctx context.Context, host string, opts ports.AnalyzeOptions) (ports.AnalysisReport, error) {
	q := url.Values{}
	q.Set("host", host)
	q.Set("publish", "off")
	q.Set("all", "done")
	q.Set("ignoreMismatch", "on")
	if opts.StartNew {
		q.Set("startNew", "on")
	} else {
		q.Set("startNew", "off")
		if opts.FromCache {
			q.Set("fromCache", "on")
		}
	}

	endpoint := c.baseURL + "/analyze?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.AnalysisReport{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.AnalysisReport{}, domain.ExternalServiceError(
			fmt.Sprintf("TLS assessment service unreachable for %s", host), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.AnalysisReport{}, domain.ExternalServiceError(
			fmt.Sprintf("TLS assessment service returned HTTP %d for %s", resp.StatusCode, host), nil)
	}

	var body analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ports.AnalysisReport{}, domain.ExternalServiceError(
			fmt.Sprintf("TLS assessment response for %s is not valid JSON", host), err)
	}

	report := ports.AnalysisReport{
		Status:        body.Status,
		StatusMessage: body.StatusMessage,
	}
	for _, e := range body.Endpoints {
		report.Endpoints = append(report.Endpoints, ports.AnalyzedEndpoint{
			Grade:      e.Grade,
			ETASeconds: e.ETA,
		})
	}

	if c.logger != nil {
		c.logger.Debug("analyze call completed",
			zap.String("host", host),
			zap.String("status", report.Status),
			zap.Int("endpoints", len(report.Endpoints)))
	}
	return report, nil
}

var _ ports.TLSAnalyzer = (*Client)(nil)
