package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/server/response"
)

// HandleCreateScan handles POST /api/scans.
func (h *Handlers) HandleCreateScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetURL string `json:"targetUrl"`
		ScanType  string `json:"scanType"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	sc, err := h.scans.Create(r.Context(), actor(r), body.TargetURL, body.ScanType)
	if err != nil {
		response.Error(w, r, err, "Error creating scan")
		return
	}
	response.Created(w, "Scan started successfully", response.Fields{"scan": sc})
}

// HandleListScans handles GET /api/scans.
func (h *Handlers) HandleListScans(w http.ResponseWriter, r *http.Request) {
	page, err := h.scans.List(r.Context(), actor(r), r.URL.Query().Get("status"), pageParam(r))
	if err != nil {
		response.Error(w, r, err, "Error fetching scans")
		return
	}
	response.OK(w, response.Fields{"scans": page.Scans, "pagination": page.Pagination})
}

// HandleScanStats handles GET /api/scans/stats.
func (h *Handlers) HandleScanStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scans.Stats(r.Context(), actor(r))
	if err != nil {
		response.Error(w, r, err, "Error fetching scan statistics")
		return
	}
	response.OK(w, response.Fields{"stats": stats})
}

// HandleGetScan handles GET /api/scans/{scanId}.
func (h *Handlers) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	sc, err := h.scans.Get(r.Context(), actor(r), r.PathValue("scanId"))
	if err != nil {
		response.Error(w, r, err, "Error fetching scan")
		return
	}
	response.OK(w, response.Fields{"scan": sc})
}

// HandleScanVulnerabilities handles GET /api/scans/{scanId}/vulnerabilities.
func (h *Handlers) HandleScanVulnerabilities(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("severity")
	severities, err := model.ParseSeverities(raw)
	if err != nil {
		response.Error(w, r, errors.NewValidationError("severity", raw, "Severity must be between 0 and 3"), "")
		return
	}
	vulns, summary, err := h.scans.Vulnerabilities(r.Context(), actor(r), r.PathValue("scanId"), severities)
	if err != nil {
		response.Error(w, r, err, "Error fetching vulnerabilities")
		return
	}
	response.OK(w, response.Fields{"vulnerabilities": vulns, "summary": summary})
}

// HandleScanResults handles GET /api/scans/{scanId}/results.
func (h *Handlers) HandleScanResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.scans.Results(r.Context(), actor(r), r.PathValue("scanId"))
	if err != nil {
		response.Error(w, r, err, "Error fetching scan results")
		return
	}
	response.OK(w, response.Fields{"results": results})
}

// HandleDeleteScan handles DELETE /api/scans/{scanId}.
func (h *Handlers) HandleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scans.Delete(r.Context(), actor(r), r.PathValue("scanId")); err != nil {
		response.Error(w, r, err, "Error deleting scan")
		return
	}
	response.Message(w, "Scan deleted successfully")
}

// HandleGenerateReport handles POST /api/scans/{scanId}/report.
func (h *Handlers) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReportType string `json:"reportType"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err, "")
		return
	}
	reportID, err := h.scans.GenerateReport(r.Context(), actor(r), r.PathValue("scanId"), body.ReportType)
	if err != nil {
		response.Error(w, r, err, "Error generating report")
		return
	}
	response.Success(w, http.StatusOK, "Report generation started", response.Fields{"reportId": reportID})
}

// HandleReportStatus handles GET /api/scans/reports/{reportId}/status.
func (h *Handlers) HandleReportStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := h.scans.ReportStatus(r.Context(), actor(r), r.PathValue("reportId"))
	if err != nil {
		response.Error(w, r, err, "Error fetching report status")
		return
	}
	response.OK(w, response.Fields{"reportId": rep.ReportID, "status": rep.Status})
}

// HandleDownloadReport handles GET /api/scans/reports/{reportId}/download.
// The body is streamed as-is.
func (h *Handlers) HandleDownloadReport(w http.ResponseWriter, r *http.Request) {
	dl, err := h.scans.DownloadReport(r.Context(), actor(r), r.PathValue("reportId"))
	if err != nil {
		response.Error(w, r, err, "Error downloading report")
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		// headers are gone, the client sees a truncated body
		logging.FromContext(r.Context()).Warn().Err(err).Msg("Report download interrupted")
	}
}
