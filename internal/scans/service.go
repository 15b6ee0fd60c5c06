// Package scans manages scans on behalf of users: it starts them on the
// engine, mirrors their state locally and proxies vulnerability lists and
// reports. Every lookup is scoped to what the calling user may see.
package scans

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/scan-gateway/internal/acunetix"
	"github.com/yourorg/scan-gateway/internal/cache"
	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
)

const statsKey = "scan-stats"

// Store persists scans.
type Store interface {
	InsertScan(ctx context.Context, sc *model.Scan) error
	GetScan(ctx context.Context, id string, owner *string) (*model.Scan, error)
	GetScanByReport(ctx context.Context, reportID string, owner *string) (*model.Scan, error)
	ListScans(ctx context.Context, f model.ScanFilter) ([]model.Scan, int, error)
	ListActiveScans(ctx context.Context, limit int) ([]model.Scan, error)
	SaveScanState(ctx context.Context, sc *model.Scan) error
	SetReport(ctx context.Context, id, reportID, format string) error
	SetReportKey(ctx context.Context, id, key string) error
	DeleteScan(ctx context.Context, id string) error
	ScanStats(ctx context.Context, owner *string) (model.ScanStats, error)
}

// Engine is the scanning engine API.
type Engine interface {
	CreateTarget(ctx context.Context, address, description string) (*acunetix.Target, error)
	StartScan(ctx context.Context, targetID string, scanType model.ScanType) (*acunetix.Scan, error)
	GetScan(ctx context.Context, scanID string) (*acunetix.Scan, error)
	GetScanResults(ctx context.Context, scanID string) ([]acunetix.Result, error)
	GetVulnerabilities(ctx context.Context, scanID string, severities []model.Severity) ([]acunetix.Vulnerability, error)
	DeleteScan(ctx context.Context, scanID string) error
	GenerateReport(ctx context.Context, scanID, format string) (*acunetix.Report, error)
	GetReport(ctx context.Context, reportID string) (*acunetix.Report, error)
	DownloadReport(ctx context.Context, reportID string) (io.ReadCloser, string, error)
}

// Archive keeps copies of downloaded reports.
type Archive interface {
	Archive(ctx context.Context, key string, src io.Reader, contentType string) (io.ReadCloser, bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	store   Store
	engine  Engine
	archive Archive
	stats   *cache.Cache
	now     func() time.Time
}

// NewService wires the scan service. archive may be nil to disable report
// archiving; stats may be nil to disable caching.
func NewService(store Store, engine Engine, archive Archive, stats *cache.Cache) *Service {
	if stats == nil {
		stats = cache.New(0)
	}
	return &Service{store: store, engine: engine, archive: archive, stats: stats, now: time.Now}
}

// Create registers the target with the engine, starts a scan and records it.
func (s *Service) Create(ctx context.Context, user *model.User, targetURL, scanType string) (*model.Scan, error) {
	targetURL = strings.TrimSpace(targetURL)
	if !validTargetURL(targetURL) {
		return nil, errors.NewValidationError("targetUrl", targetURL, "Invalid URL provided")
	}
	st, ok := model.ParseScanType(scanType)
	if !ok {
		return nil, errors.NewValidationError("scanType", scanType, "Scan type must be one of full, quick, custom")
	}

	target, err := s.engine.CreateTarget(ctx, targetURL, "")
	if err != nil {
		return nil, err
	}
	started, err := s.engine.StartScan(ctx, target.TargetID, st)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sc := &model.Scan{
		EngineScanID:   started.ScanID,
		EngineTargetID: target.TargetID,
		TargetURL:      targetURL,
		ScanType:       st,
		Status:         model.StatusScheduled,
		StartTime:      &now,
		UserID:         user.ID,
	}
	if err := s.store.InsertScan(ctx, sc); err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}
	s.stats.Clear()

	logging.FromContext(ctx).Info().
		Str("scan_id", sc.ID).
		Str("target_url", targetURL).
		Msg("Scan created")
	return sc, nil
}

func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ScanPage is one page of a scan listing.
type ScanPage struct {
	Scans      []model.Scan
	Pagination model.Pagination
}

func (s *Service) List(ctx context.Context, user *model.User, status string, page model.Page) (*ScanPage, error) {
	page = page.Normalize()
	items, total, err := s.store.ListScans(ctx, model.ScanFilter{
		OwnerID: user.Scope(),
		Status:  strings.TrimSpace(status),
		Page:    page,
	})
	if err != nil {
		return nil, err
	}
	return &ScanPage{Scans: items, Pagination: model.NewPagination(page, total)}, nil
}

// Get returns a visible scan after refreshing it from the engine.
func (s *Service) Get(ctx context.Context, user *model.User, id string) (*model.Scan, error) {
	sc, err := s.store.GetScan(ctx, id, user.Scope())
	if err != nil {
		return nil, err
	}
	s.Reconcile(ctx, sc)
	return sc, nil
}

// Reconcile adopts the engine's view of sc and persists it when anything
// changed. Engine and store failures are logged and leave sc as stored.
// It reports whether the scan was updated.
func (s *Service) Reconcile(ctx context.Context, sc *model.Scan) bool {
	log := logging.FromContext(ctx).With().Str("scan_id", sc.ID).Logger()

	remote, err := s.engine.GetScan(ctx, sc.EngineScanID)
	if err != nil {
		if errors.Is(err, errors.ErrUnavailable) {
			log.Warn().Err(err).Msg("Engine unavailable, keeping stored state")
		} else {
			log.Error().Err(err).Msg("Could not fetch engine status")
		}
		return false
	}
	session := remote.CurrentSession

	next := *sc
	if session.Status != "" && session.Status != sc.Status {
		next.Status = session.Status
		if model.IsTerminal(next.Status) && next.EndTime == nil {
			end := s.now().UTC()
			next.EndTime = &end
		}
		if next.Status == model.StatusCompleted {
			if counts, err := s.countVulnerabilities(ctx, sc.EngineScanID); err != nil {
				log.Warn().Err(err).Msg("Could not fetch vulnerabilities")
			} else {
				next.Summary = counts
			}
		}
	}
	if session.Progress > next.Progress {
		next.Progress = min(session.Progress, 100)
	}
	if threat := acunetix.ThreatLevel(session.Threat); threat != nil {
		next.ThreatLevel = threat
	}

	if !stateChanged(sc, &next) {
		return false
	}
	if err := s.store.SaveScanState(ctx, &next); err != nil {
		log.Error().Err(err).Msg("Could not save reconciled scan")
		return false
	}
	log.Info().Str("from", sc.Status).Str("to", next.Status).Int("progress", next.Progress).Msg("Scan reconciled")
	*sc = next
	s.stats.Clear()
	return true
}

func stateChanged(old, next *model.Scan) bool {
	return old.Status != next.Status ||
		old.Progress != next.Progress ||
		old.Summary != next.Summary ||
		!equalTime(old.EndTime, next.EndTime) ||
		!equalString(old.ThreatLevel, next.ThreatLevel)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *Service) countVulnerabilities(ctx context.Context, engineScanID string) (model.Summary, error) {
	vulns, err := s.engine.GetVulnerabilities(ctx, engineScanID, nil)
	if err != nil {
		return model.Summary{}, err
	}
	return summarize(vulns), nil
}

func summarize(vulns []acunetix.Vulnerability) model.Summary {
	var sum model.Summary
	for _, v := range vulns {
		sum.Add(v.Severity)
	}
	return sum
}

// Vulnerabilities lists the engine findings of a visible scan, optionally
// filtered to severities.
func (s *Service) Vulnerabilities(ctx context.Context, user *model.User, id string, severities []model.Severity) ([]acunetix.Vulnerability, model.SeverityView, error) {
	for _, sev := range severities {
		if !sev.Valid() {
			return nil, model.SeverityView{}, errors.NewValidationError("severity", int(sev), "Severity must be between 0 and 3")
		}
	}
	sc, err := s.store.GetScan(ctx, id, user.Scope())
	if err != nil {
		return nil, model.SeverityView{}, err
	}
	vulns, err := s.engine.GetVulnerabilities(ctx, sc.EngineScanID, severities)
	if err != nil {
		return nil, model.SeverityView{}, err
	}
	return vulns, summarize(vulns).View(), nil
}

// Results lists the engine result sessions of a visible scan.
func (s *Service) Results(ctx context.Context, user *model.User, id string) ([]acunetix.Result, error) {
	sc, err := s.store.GetScan(ctx, id, user.Scope())
	if err != nil {
		return nil, err
	}
	results, err := s.engine.GetScanResults(ctx, sc.EngineScanID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []acunetix.Result{}
	}
	return results, nil
}

// Delete removes a visible scan. Engine and archive cleanup are best effort.
func (s *Service) Delete(ctx context.Context, user *model.User, id string) error {
	log := logging.FromContext(ctx)
	sc, err := s.store.GetScan(ctx, id, user.Scope())
	if err != nil {
		return err
	}
	if err := s.engine.DeleteScan(ctx, sc.EngineScanID); err != nil {
		log.Warn().Err(err).Str("scan_id", sc.ID).Msg("Could not delete scan from engine")
	}
	if err := s.store.DeleteScan(ctx, sc.ID); err != nil {
		return err
	}
	if sc.ReportKey != nil && s.archive != nil {
		if err := s.archive.Remove(ctx, *sc.ReportKey); err != nil {
			log.Warn().Err(err).Str("key", *sc.ReportKey).Msg("Could not remove archived report")
		}
	}
	s.stats.Clear()
	log.Info().Str("scan_id", sc.ID).Msg("Scan deleted")
	return nil
}

// GenerateReport asks the engine for a report of a completed, visible scan
// and returns the engine report id.
func (s *Service) GenerateReport(ctx context.Context, user *model.User, id, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "html" {
		return "", errors.NewValidationError("reportType", format, "Report type must be pdf or html")
	}
	sc, err := s.store.GetScan(ctx, id, user.Scope())
	if err != nil {
		return "", err
	}
	if sc.Status != model.StatusCompleted {
		return "", errors.NewNotReadyError("Cannot generate report for incomplete scan", sc.Status)
	}
	report, err := s.engine.GenerateReport(ctx, sc.EngineScanID, format)
	if err != nil {
		return "", err
	}
	if err := s.store.SetReport(ctx, sc.ID, report.ReportID, format); err != nil {
		return "", fmt.Errorf("save report id: %w", err)
	}
	return report.ReportID, nil
}

// ReportStatus proxies the engine status of a report of a visible scan.
func (s *Service) ReportStatus(ctx context.Context, user *model.User, reportID string) (*acunetix.Report, error) {
	if _, err := s.store.GetScanByReport(ctx, reportID, user.Scope()); err != nil {
		return nil, err
	}
	return s.engine.GetReport(ctx, reportID)
}

// Download is a report ready to be streamed. The caller must close Body.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

// DownloadReport streams a report of a visible scan, from the archive when a
// copy exists, else from the engine once rendering has completed.
func (s *Service) DownloadReport(ctx context.Context, user *model.User, reportID string) (*Download, error) {
	log := logging.FromContext(ctx)
	sc, err := s.store.GetScanByReport(ctx, reportID, user.Scope())
	if err != nil {
		return nil, err
	}
	format := "pdf"
	if sc.ReportFormat != nil && *sc.ReportFormat != "" {
		format = *sc.ReportFormat
	}
	filename := fmt.Sprintf("scan-report-%s.%s", reportID, format)

	if sc.ReportKey != nil && s.archive != nil {
		body, contentType, err := s.archive.Open(ctx, *sc.ReportKey)
		if err == nil {
			return &Download{Body: body, ContentType: orDefault(contentType, format), Filename: filename}, nil
		}
		if errors.IsNotFound(err) {
			log.Info().Str("key", *sc.ReportKey).Msg("Archived report missing, fetching from engine")
		} else {
			log.Warn().Err(err).Str("key", *sc.ReportKey).Msg("Archived report unavailable, falling back to engine")
		}
	}

	report, err := s.engine.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != acunetix.ReportCompleted {
		return nil, errors.NewNotReadyError("Report is not ready for download", report.Status)
	}
	body, contentType, err := s.engine.DownloadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	contentType = orDefault(contentType, format)

	if s.archive == nil {
		return &Download{Body: body, ContentType: contentType, Filename: filename}, nil
	}

	key := "reports/" + reportID + "." + format
	staged, archived, err := s.archive.Archive(ctx, key, body, contentType)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("stage report: %w", err)
	}
	if archived {
		if err := s.store.SetReportKey(ctx, sc.ID, key); err != nil {
			log.Warn().Err(err).Str("scan_id", sc.ID).Msg("Could not record archived report key")
		}
	}
	return &Download{Body: staged, ContentType: contentType, Filename: filename}, nil
}

func orDefault(contentType, format string) string {
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if format == "html" {
		return "text/html"
	}
	return "application/pdf"
}

// Stats aggregates the scans visible to user. Results are cached briefly.
func (s *Service) Stats(ctx context.Context, user *model.User) (model.ScanStats, error) {
	scope := user.Scope()
	key := cache.ScopeKey(statsKey, scope)
	if v, ok := s.stats.Get(key); ok {
		return v.(model.ScanStats), nil
	}
	// A scan change clears the cache while the query runs; the result is
	// then dropped rather than cached stale.
	gen := s.stats.Generation()
	st, err := s.store.ScanStats(ctx, scope)
	if err != nil {
		return model.ScanStats{}, err
	}
	s.stats.SetIfCurrent(gen, key, st)
	return st, nil
}

// ListActive returns scans the engine may still be working on.
func (s *Service) ListActive(ctx context.Context, limit int) ([]model.Scan, error) {
	return s.store.ListActiveScans(ctx, limit)
}
