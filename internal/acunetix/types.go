package acunetix

import "github.com/yourorg/scan-gateway/internal/model"

// Report templates.
const (
	TemplatePDF  = "11111111-1111-1111-1111-111111111111"
	TemplateHTML = "11111111-1111-1111-1111-111111111112"
)

// Report statuses.
const (
	ReportQueued     = "queued"
	ReportProcessing = "processing"
	ReportCompleted  = "completed"
	ReportFailed     = "failed"
)

type Target struct {
	TargetID    string `json:"target_id"`
	Address     string `json:"address"`
	Description string `json:"description"`
	Criticality int    `json:"criticality"`
}

type Schedule struct {
	Disable       bool    `json:"disable"`
	StartDate     *string `json:"start_date"`
	TimeSensitive bool    `json:"time_sensitive"`
}

type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
}

type Session struct {
	ScanSessionID  string          `json:"scan_session_id"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	Threat         *int            `json:"threat"`
	StartDate      string          `json:"start_date"`
	SeverityCounts *SeverityCounts `json:"severity_counts"`
}

// Scan is the engine's view of a scan.
type Scan struct {
	ScanID         string   `json:"scan_id"`
	TargetID       string   `json:"target_id"`
	ProfileID      string   `json:"profile_id"`
	CurrentSession Session  `json:"current_session"`
	Schedule       Schedule `json:"schedule"`
}

type Result struct {
	ResultID  string `json:"result_id"`
	ScanID    string `json:"scan_id"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Vulnerability struct {
	VulnID        string         `json:"vuln_id"`
	Severity      model.Severity `json:"severity"`
	VtName        string         `json:"vt_name"`
	VtID          string         `json:"vt_id"`
	AffectsURL    string         `json:"affects_url"`
	AffectsDetail string         `json:"affects_detail"`
	Confidence    int            `json:"confidence"`
	Criticality   int            `json:"criticality"`
	Status        string         `json:"status"`
	LastSeen      string         `json:"last_seen"`
	Tags          []string       `json:"tags"`
}

type Report struct {
	ReportID   string   `json:"report_id"`
	TemplateID string   `json:"template_id"`
	Status     string   `json:"status"`
	Download   []string `json:"download,omitempty"`
}

// ThreatLevel names the engine's numeric session threat.
func ThreatLevel(threat *int) *string {
	if threat == nil {
		return nil
	}
	var name string
	switch *threat {
	case 0:
		name = "info"
	case 1:
		name = "low"
	case 2:
		name = "medium"
	default:
		name = "high"
	}
	return &name
}
