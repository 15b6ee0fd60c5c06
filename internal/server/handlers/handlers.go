// Package handlers provides the HTTP request handlers of the gateway API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/yourorg/scan-gateway/internal/acunetix"
	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/model"
	"github.com/yourorg/scan-gateway/internal/scans"
	"github.com/yourorg/scan-gateway/internal/users"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ScanService is the scan façade the handlers drive.
type ScanService interface {
	Create(ctx context.Context, user *model.User, targetURL, scanType string) (*model.Scan, error)
	List(ctx context.Context, user *model.User, status string, page model.Page) (*scans.ScanPage, error)
	Get(ctx context.Context, user *model.User, id string) (*model.Scan, error)
	Vulnerabilities(ctx context.Context, user *model.User, id string, severities []model.Severity) ([]acunetix.Vulnerability, model.SeverityView, error)
	Results(ctx context.Context, user *model.User, id string) ([]acunetix.Result, error)
	Delete(ctx context.Context, user *model.User, id string) error
	GenerateReport(ctx context.Context, user *model.User, id, format string) (string, error)
	ReportStatus(ctx context.Context, user *model.User, reportID string) (*acunetix.Report, error)
	DownloadReport(ctx context.Context, user *model.User, reportID string) (*scans.Download, error)
	Stats(ctx context.Context, user *model.User) (model.ScanStats, error)
}

// UserService covers authentication, self-service and administration of accounts.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*users.Session, error)
	Login(ctx context.Context, username, password string) (*users.Session, error)
	Me(ctx context.Context, user *model.User) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User, email string) (*model.User, error)
	ChangePassword(ctx context.Context, user *model.User, current, next string) error
	List(ctx context.Context, search string, page model.Page) (*users.UserPage, error)
	Get(ctx context.Context, id string) (*users.UserDetail, error)
	Create(ctx context.Context, username, email, password string, role model.Role) (*model.User, error)
	Update(ctx context.Context, actor *model.User, id string, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, actor *model.User, id string) error
	ResetPassword(ctx context.Context, id, password string) error
	Stats(ctx context.Context) (model.UserStats, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	scans ScanService
	users UserService
	db    Pinger
}

// New creates a new Handlers instance.
func New(scans ScanService, users UserService, db Pinger) *Handlers {
	return &Handlers{scans: scans, users: users, db: db}
}

// decodeJSON reads a JSON object body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return errors.NewValidationError("body", nil, "Invalid JSON body")
	}
	return nil
}

// pageParam reads ?page and ?limit. Malformed values fall back to defaults.
func pageParam(r *http.Request) model.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.Page{Number: page, Limit: limit}.Normalize()
}
