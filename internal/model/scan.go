package model

import (
	"strings"
	"time"
)

type ScanType string

const (
	ScanTypeFull   ScanType = "full"
	ScanTypeQuick  ScanType = "quick"
	ScanTypeCustom ScanType = "custom"
)

// Engine scan profiles.
const (
	ProfileFull  = "11111111-1111-1111-1111-111111111111"
	ProfileQuick = "11111111-1111-1111-1111-111111111112"
)

// ParseScanType returns the scan type for s; an empty string means full.
func ParseScanType(s string) (ScanType, bool) {
	switch t := ScanType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ScanTypeFull, true
	case ScanTypeFull, ScanTypeQuick, ScanTypeCustom:
		return t, true
	default:
		return "", false
	}
}

// ProfileID is the engine profile a scan of this type runs with.
func (t ScanType) ProfileID() string {
	if t == ScanTypeQuick {
		return ProfileQuick
	}
	return ProfileFull
}

// Scan statuses. Everything except StatusScheduled is reported by the engine.
const (
	StatusScheduled  = "scheduled"
	StatusQueued     = "queued"
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusRunning    = "running"
	StatusPausing    = "pausing"
	StatusPaused     = "paused"
	StatusAborting   = "aborting"
	StatusAborted    = "aborted"
	StatusFailed     = "failed"
	StatusCompleted  = "completed"
)

// ActiveStatuses are the statuses the reconciler sweeps.
var ActiveStatuses = []string{StatusScheduled, StatusQueued, StatusStarting, StatusProcessing, StatusRunning}

// RunningStatuses are counted as "running" in scan statistics.
var RunningStatuses = []string{StatusScheduled, StatusProcessing, StatusRunning}

// IsTerminal reports whether the engine will not move a scan out of status.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// IsActive reports whether status is one the reconciler should poll.
func IsActive(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Scan is the local mirror of an engine scan.
type Scan struct {
	ID             string     `json:"id"`
	EngineScanID   string     `json:"acunetixScanId"`
	EngineTargetID string     `json:"acunetixTargetId,omitempty"`
	TargetURL      string     `json:"targetUrl"`
	ScanType       ScanType   `json:"scanType"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	ThreatLevel    *string    `json:"threatLevel"`
	StartTime      *time.Time `json:"startTime"`
	EndTime        *time.Time `json:"endTime"`
	Summary
	ReportID     *string      `json:"reportId"`
	ReportFormat *string      `json:"reportFormat"`
	ReportKey    *string      `json:"reportUrl"`
	UserID       string       `json:"userId"`
	User         *UserSummary `json:"User,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Summary holds vulnerability counts by engine severity.
type Summary struct {
	High   int `json:"highVulnerabilities"`
	Medium int `json:"mediumVulnerabilities"`
	Low    int `json:"lowVulnerabilities"`
	Info   int `json:"infoVulnerabilities"`
}

// Total is the sum of all severities.
func (s Summary) Total() int {
	return s.High + s.Medium + s.Low + s.Info
}

// Add increments the bucket for an engine severity level. Unknown levels are ignored.
func (s *Summary) Add(severity Severity) {
	switch severity {
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	case SeverityInfo:
		s.Info++
	}
}

// ScanFilter selects scans for listing. OwnerID nil means every owner.
type ScanFilter struct {
	OwnerID *string
	Status  string
	Page    Page
}

// ScanStats aggregates scans for the statistics endpoint.
type ScanStats struct {
	TotalScans      int          `json:"totalScans"`
	CompletedScans  int          `json:"completedScans"`
	RunningScans    int          `json:"runningScans"`
	Vulnerabilities SeverityView `json:"vulnerabilities"`
}

// SeverityView is the lower-case wire form of a Summary.
type SeverityView struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
	Total  int `json:"total"`
}

// View converts s to its wire form.
func (s Summary) View() SeverityView {
	return SeverityView{High: s.High, Medium: s.Medium, Low: s.Low, Info: s.Info, Total: s.Total()}
}
