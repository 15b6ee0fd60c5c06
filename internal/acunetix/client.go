// Package acunetix is an HTTP client for the Acunetix scanning engine. Each
// method maps to exactly one engine endpoint; requests are authenticated with
// the static API key in the X-Auth header.
package acunetix

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
)

// DefaultTimeout is used when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

const authHeader = "X-Auth"

// maxErrorBody bounds how much of an error response is read into a message.
const maxErrorBody = 64 << 10

type Options struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	InsecureTLS bool
	HTTPClient  *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the engine API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.NewConfigError("ACUNETIX_API_URL", "is required", nil)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, errors.NewConfigError("ACUNETIX_API_URL", "is not a valid URL", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			// Engines are commonly deployed with self-signed certificates.
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		hc = &http.Client{Timeout: timeout, Transport: transport}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    hc,
	}, nil
}

// CreateTarget registers address with the engine.
func (c *Client) CreateTarget(ctx context.Context, address, description string) (*Target, error) {
	if description == "" {
		description = "Target for " + address
	}
	body := map[string]any{
		"address":     address,
		"description": description,
		"criticality": 10,
	}
	var target Target
	if err := c.call(ctx, "create target", http.MethodPost, "/targets", nil, body, &target); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("address", address).
		Str("target_id", target.TargetID).
		Msg("Target created")
	return &target, nil
}

// StartScan schedules an immediate scan of targetID using the profile for scanType.
func (c *Client) StartScan(ctx context.Context, targetID string, scanType model.ScanType) (*Scan, error) {
	body := map[string]any{
		"target_id":  targetID,
		"profile_id": scanType.ProfileID(),
		"schedule":   Schedule{Disable: false, StartDate: nil, TimeSensitive: false},
	}
	var scan Scan
	if err := c.call(ctx, "start scan", http.MethodPost, "/scans", nil, body, &scan); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("engine_scan_id", scan.ScanID).
		Str("target_id", targetID).
		Msg("Scan started")
	return &scan, nil
}

// GetScan returns the engine's current view of scanID.
func (c *Client) GetScan(ctx context.Context, scanID string) (*Scan, error) {
	var scan Scan
	if err := c.call(ctx, "get scan status", http.MethodGet, "/scans/"+url.PathEscape(scanID), nil, nil, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// GetScanResults lists the result sessions of scanID.
func (c *Client) GetScanResults(ctx context.Context, scanID string) ([]Result, error) {
	var out struct {
		Results []Result `json:"results"`
	}
	path := "/scans/" + url.PathEscape(scanID) + "/results"
	if err := c.call(ctx, "get scan results", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// GetVulnerabilities lists the vulnerabilities found by scanID. When
// severities is non-empty only those levels are returned.
func (c *Client) GetVulnerabilities(ctx context.Context, scanID string, severities []model.Severity) ([]Vulnerability, error) {
	var query url.Values
	if len(severities) > 0 {
		levels := make([]string, 0, len(severities))
		for _, s := range severities {
			if !s.Valid() {
				return nil, errors.NewValidationError("severity", int(s), "severity must be between 0 and 3")
			}
			levels = append(levels, strconv.Itoa(int(s)))
		}
		query = url.Values{"q": []string{"severity:" + strings.Join(levels, ",")}}
	}
	var out struct {
		Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	}
	path := "/scans/" + url.PathEscape(scanID) + "/results/vulnerabilities"
	if err := c.call(ctx, "get vulnerabilities", http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	if out.Vulnerabilities == nil {
		out.Vulnerabilities = []Vulnerability{}
	}
	return out.Vulnerabilities, nil
}

// DeleteScan removes scanID from the engine.
func (c *Client) DeleteScan(ctx context.Context, scanID string) error {
	if err := c.call(ctx, "delete scan", http.MethodDelete, "/scans/"+url.PathEscape(scanID), nil, nil, nil); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Str("engine_scan_id", scanID).Msg("Scan deleted from engine")
	return nil
}

// GenerateReport asks the engine to render a report for scanID.
// format "pdf" selects the PDF template, anything else the HTML one.
func (c *Client) GenerateReport(ctx context.Context, scanID, format string) (*Report, error) {
	template := TemplateHTML
	if format == "pdf" {
		template = TemplatePDF
	}
	body := map[string]any{
		"source": map[string]any{
			"list_type": "scans",
			"id_list":   []string{scanID},
		},
		"template_id": template,
	}
	var report Report
	if err := c.call(ctx, "generate report", http.MethodPost, "/reports", nil, body, &report); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("report_id", report.ReportID).
		Str("engine_scan_id", scanID).
		Msg("Report generation requested")
	return &report, nil
}

// GetReport returns the generation status of reportID.
func (c *Client) GetReport(ctx context.Context, reportID string) (*Report, error) {
	var report Report
	if err := c.call(ctx, "get report status", http.MethodGet, "/reports/"+url.PathEscape(reportID), nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// DownloadReport streams the rendered report. The caller must close the body.
func (c *Client) DownloadReport(ctx context.Context, reportID string) (io.ReadCloser, string, error) {
	const op = "download report"
	req, err := c.newRequest(ctx, op, http.MethodGet, "/reports/"+url.PathEscape(reportID)+"/download", nil, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", c.transportError(ctx, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, "", c.statusError(ctx, op, resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// call performs a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	req, err := c.newRequest(ctx, op, method, path, query, in)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		logging.FromContext(ctx).Error().Err(err).Str("operation", op).Msg("Engine response decode failed")
		return &errors.APIError{Operation: op, StatusCode: resp.StatusCode, Message: "invalid response body: " + err.Error(), Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, query url.Values, in any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: build request: %w", op, err)
	}
	req.Header.Set(authHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx).Error().Err(err).Str("operation", op).Msg("Engine request failed")
	return &errors.APIError{Operation: op, Message: err.Error(), Err: err}
}

func (c *Client) statusError(ctx context.Context, op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var payload struct {
		Message string `json:"message"`
		Details any    `json:"details"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	logging.FromContext(ctx).Error().
		Str("operation", op).
		Int("status", resp.StatusCode).
		Str("message", msg).
		Msg("Engine returned an error")
	return &errors.APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg}
}
