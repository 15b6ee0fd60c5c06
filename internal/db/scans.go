package db

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/model"
)

const scanColumns = `s.id::text, s.acunetix_scan_id, COALESCE(s.acunetix_target_id, ''), s.target_url, s.scan_type,
  s.status, s.progress, s.threat_level, s.start_time, s.end_time,
  s.high_vulnerabilities, s.medium_vulnerabilities, s.low_vulnerabilities, s.info_vulnerabilities,
  s.report_id, s.report_format, s.report_key, s.user_id::text, s.created_at, s.updated_at`

const ownerColumns = `, u.id::text, u.username, u.email`

const scanFrom = ` FROM scans s LEFT JOIN users u ON u.id = s.user_id`

// scanSelect builds the projection. Owner details are only included for
// unscoped (administrator) reads.
func scanSelect(owner *string) string {
	if owner == nil {
		return `SELECT ` + scanColumns + ownerColumns + scanFrom
	}
	return `SELECT ` + scanColumns + scanFrom
}

func scanScan(row pgx.Row, withOwner bool) (*model.Scan, error) {
	var sc model.Scan
	dest := []any{
		&sc.ID, &sc.EngineScanID, &sc.EngineTargetID, &sc.TargetURL, &sc.ScanType,
		&sc.Status, &sc.Progress, &sc.ThreatLevel, &sc.StartTime, &sc.EndTime,
		&sc.High, &sc.Medium, &sc.Low, &sc.Info,
		&sc.ReportID, &sc.ReportFormat, &sc.ReportKey, &sc.UserID, &sc.CreatedAt, &sc.UpdatedAt,
	}
	var ownerID, ownerName, ownerEmail *string
	if withOwner {
		dest = append(dest, &ownerID, &ownerName, &ownerEmail)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if ownerID != nil {
		sc.User = &model.UserSummary{ID: *ownerID}
		if ownerName != nil {
			sc.User.Username = *ownerName
		}
		if ownerEmail != nil {
			sc.User.Email = *ownerEmail
		}
	}
	return &sc, nil
}

func (s *Store) InsertScan(ctx context.Context, sc *model.Scan) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sc.CreatedAt, sc.UpdatedAt = now, now
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO scans (
		  id, acunetix_scan_id, acunetix_target_id, target_url, scan_type, status,
		  progress, start_time, user_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sc.ID, sc.EngineScanID, nullableString(sc.EngineTargetID), sc.TargetURL, string(sc.ScanType), sc.Status,
		sc.Progress, sc.StartTime, sc.UserID, sc.CreatedAt, sc.UpdatedAt)
	return err
}

// GetScan loads scan id. A non-nil owner restricts the lookup to that user's
// scans; a scan owned by someone else is reported as not found.
func (s *Store) GetScan(ctx context.Context, id string, owner *string) (*model.Scan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewNotFoundError("Scan", id)
	}
	q := newQuery()
	q.where("s.id=" + q.arg(id))
	if owner != nil {
		q.where("s.user_id=" + q.arg(*owner))
	}
	sc, err := scanScan(s.Pool.QueryRow(ctx, scanSelect(owner)+q.clause(), q.args...), owner == nil)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("Scan", id)
	}
	return sc, err
}

// GetScanByReport finds the scan a report was generated from, with the same
// owner scoping as GetScan.
func (s *Store) GetScanByReport(ctx context.Context, reportID string, owner *string) (*model.Scan, error) {
	q := newQuery()
	q.where("s.report_id=" + q.arg(reportID))
	if owner != nil {
		q.where("s.user_id=" + q.arg(*owner))
	}
	sql := scanSelect(owner) + q.clause() + ` ORDER BY s.updated_at DESC LIMIT 1`
	sc, err := scanScan(s.Pool.QueryRow(ctx, sql, q.args...), owner == nil)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("Report", reportID)
	}
	return sc, err
}

// ListScans returns one page of scans, newest first, and the total match count.
func (s *Store) ListScans(ctx context.Context, f model.ScanFilter) ([]model.Scan, int, error) {
	q := newQuery()
	if f.OwnerID != nil {
		q.where("s.user_id=" + q.arg(*f.OwnerID))
	}
	if f.Status != "" {
		q.where("s.status=" + q.arg(f.Status))
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM scans s`+q.clause(), q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	sql := scanSelect(f.OwnerID) + q.clause() +
		` ORDER BY s.created_at DESC LIMIT ` + q.arg(page.Limit) + ` OFFSET ` + q.arg(page.Offset())
	out, err := s.collectScans(ctx, sql, f.OwnerID == nil, q.args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// RecentScans returns the newest n scans owned by userID.
func (s *Store) RecentScans(ctx context.Context, userID string, n int) ([]model.Scan, error) {
	owner := userID
	return s.collectScans(ctx, scanSelect(&owner)+` WHERE s.user_id=$1 ORDER BY s.created_at DESC LIMIT $2`, false, userID, n)
}

// ListActiveScans returns scans whose status may still change, oldest first.
// limit <= 0 means no limit.
func (s *Store) ListActiveScans(ctx context.Context, limit int) ([]model.Scan, error) {
	sql := scanSelect(nil) + ` WHERE s.status = ANY($1) ORDER BY s.created_at`
	args := []any{model.ActiveStatuses}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.collectScans(ctx, sql, true, args...)
}

func (s *Store) collectScans(ctx context.Context, sql string, withOwner bool, args ...any) ([]model.Scan, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Scan, 0)
	for rows.Next() {
		sc, err := scanScan(rows, withOwner)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveScanState persists the engine-derived fields of sc.
func (s *Store) SaveScanState(ctx context.Context, sc *model.Scan) error {
	sc.UpdatedAt = time.Now().UTC()
	tag, err := s.Pool.Exec(ctx, `
		UPDATE scans
		SET status=$2,
		    progress=GREATEST(progress, $3),
		    threat_level=$4,
		    end_time=$5,
		    high_vulnerabilities=$6, medium_vulnerabilities=$7,
		    low_vulnerabilities=$8, info_vulnerabilities=$9,
		    updated_at=$10
		WHERE id=$1
	`, sc.ID, sc.Status, sc.Progress, sc.ThreatLevel, sc.EndTime,
		sc.High, sc.Medium, sc.Low, sc.Info, sc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("Scan", sc.ID)
	}
	return nil
}

func (s *Store) SetReport(ctx context.Context, id, reportID, format string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE scans
		SET report_id=$2, report_format=$3, report_key=NULL, updated_at=now()
		WHERE id=$1
	`, id, reportID, format)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("Scan", id)
	}
	return nil
}

func (s *Store) SetReportKey(ctx context.Context, id, key string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE scans SET report_key=$2, updated_at=now() WHERE id=$1`, id, key)
	return err
}

func (s *Store) DeleteScan(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM scans WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("Scan", id)
	}
	return nil
}

func (s *Store) CountScansByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM scans WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// ScanStats aggregates scans visible to owner (nil means all).
func (s *Store) ScanStats(ctx context.Context, owner *string) (model.ScanStats, error) {
	q := newQuery()
	completed := q.arg(model.StatusCompleted)
	running := q.arg(model.RunningStatuses)
	if owner != nil {
		q.where("user_id=" + q.arg(*owner))
	}
	var (
		st  model.ScanStats
		sum model.Summary
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT
		  count(*),
		  count(*) FILTER (WHERE status=`+completed+`),
		  count(*) FILTER (WHERE status = ANY(`+running+`)),
		  COALESCE(sum(high_vulnerabilities) FILTER (WHERE status=`+completed+`), 0),
		  COALESCE(sum(medium_vulnerabilities) FILTER (WHERE status=`+completed+`), 0),
		  COALESCE(sum(low_vulnerabilities) FILTER (WHERE status=`+completed+`), 0),
		  COALESCE(sum(info_vulnerabilities) FILTER (WHERE status=`+completed+`), 0)
		FROM scans`+q.clause(), q.args...).
		Scan(&st.TotalScans, &st.CompletedScans, &st.RunningScans, &sum.High, &sum.Medium, &sum.Low, &sum.Info)
	if err != nil {
		return st, err
	}
	st.Vulnerabilities = sum.View()
	return st, nil
}
