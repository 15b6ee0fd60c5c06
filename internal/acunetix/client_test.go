package acunetix

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/api/v1/", APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCreateTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/targets", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Auth"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com", body["address"])
		assert.Equal(t, "Target for https://example.com", body["description"])
		assert.EqualValues(t, 10, body["criticality"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"target_id":"t-1","address":"https://example.com"}`))
	})

	target, err := c.CreateTarget(context.Background(), "https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "t-1", target.TargetID)
}

func TestStartScanUsesProfile(t *testing.T) {
	tests := []struct {
		scanType model.ScanType
		profile  string
	}{
		{model.ScanTypeFull, model.ProfileFull},
		{model.ScanTypeQuick, model.ProfileQuick},
		{model.ScanTypeCustom, model.ProfileFull},
	}
	for _, tt := range tests {
		t.Run(string(tt.scanType), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					TargetID  string   `json:"target_id"`
					ProfileID string   `json:"profile_id"`
					Schedule  Schedule `json:"schedule"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "t-1", body.TargetID)
				assert.Equal(t, tt.profile, body.ProfileID)
				assert.False(t, body.Schedule.Disable)
				assert.Nil(t, body.Schedule.StartDate)
				_, _ = w.Write([]byte(`{"scan_id":"s-1"}`))
			})
			scan, err := c.StartScan(context.Background(), "t-1", tt.scanType)
			require.NoError(t, err)
			assert.Equal(t, "s-1", scan.ScanID)
		})
	}
}

func TestGetScan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scans/s-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"scan_id":"s-1","current_session":{"status":"processing","progress":42,"threat":2,
			"severity_counts":{"high":1,"medium":2,"low":3,"info":4}}}`))
	})

	scan, err := c.GetScan(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "processing", scan.CurrentSession.Status)
	assert.Equal(t, 42, scan.CurrentSession.Progress)
	require.NotNil(t, scan.CurrentSession.SeverityCounts)
	assert.Equal(t, 3, scan.CurrentSession.SeverityCounts.Low)
	assert.Equal(t, "medium", *ThreatLevel(scan.CurrentSession.Threat))
}

func TestGetVulnerabilitiesFilter(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scans/s-1/results/vulnerabilities", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"vulnerabilities":[{"vuln_id":"v1","severity":3,"vt_name":"SQL injection"}]}`))
	})

	vulns, err := c.GetVulnerabilities(context.Background(), "s-1", []model.Severity{model.SeverityHigh, model.SeverityMedium})
	require.NoError(t, err)
	assert.Equal(t, "severity:3,2", gotQuery)
	require.Len(t, vulns, 1)
	assert.Equal(t, model.SeverityHigh, vulns[0].Severity)

	_, err = c.GetVulnerabilities(context.Background(), "s-1", []model.Severity{7})
	assert.True(t, errors.IsValidationError(err))
}

func TestGetVulnerabilitiesEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{}`))
	})
	vulns, err := c.GetVulnerabilities(context.Background(), "s-1", nil)
	require.NoError(t, err)
	assert.NotNil(t, vulns)
	assert.Empty(t, vulns)
}

func TestGenerateReportTemplate(t *testing.T) {
	for format, template := range map[string]string{"pdf": TemplatePDF, "html": TemplateHTML, "": TemplateHTML} {
		t.Run(format, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Source struct {
						ListType string   `json:"list_type"`
						IDList   []string `json:"id_list"`
					} `json:"source"`
					TemplateID string `json:"template_id"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "scans", body.Source.ListType)
				assert.Equal(t, []string{"s-1"}, body.Source.IDList)
				assert.Equal(t, template, body.TemplateID)
				_, _ = w.Write([]byte(`{"report_id":"r-1","status":"queued"}`))
			})
			report, err := c.GenerateReport(context.Background(), "s-1", format)
			require.NoError(t, err)
			assert.Equal(t, "r-1", report.ReportID)
		})
	}
}

func TestDeleteScanNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.DeleteScan(context.Background(), "s-1"))
}

func TestDownloadReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports/r-1/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	body, contentType, err := c.DownloadReport(context.Background(), "r-1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", contentType)
}

func TestErrorResponses(t *testing.T) {
	t.Run("engine message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"Object not found"}`))
		})
		_, err := c.GetScan(context.Background(), "missing")
		require.Error(t, err)

		var apiErr *errors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "failed to get scan status: Object not found (status 404)", err.Error())
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("raw body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})
		_, err := c.GetReport(context.Background(), "r-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream down")
		assert.True(t, errors.Is(err, errors.ErrUnavailable))
	})

	t.Run("download", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})
		_, _, err := c.DownloadReport(context.Background(), "r-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Conflict")
	})
}

func TestThreatLevel(t *testing.T) {
	assert.Nil(t, ThreatLevel(nil))
	for in, want := range map[int]string{0: "info", 1: "low", 2: "medium", 3: "high", 4: "high"} {
		v := in
		assert.Equal(t, want, *ThreatLevel(&v))
	}
}
