package db

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ Pool *pgxpool.Pool }

func Open(ctx context.Context, url string) (*Store, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: p}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY,
  username TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  status TEXT NOT NULL DEFAULT 'active',
  last_login TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email);

DO $$
BEGIN
  IF EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'users_role_check') THEN
    ALTER TABLE users DROP CONSTRAINT users_role_check;
  END IF;
  ALTER TABLE users
    ADD CONSTRAINT users_role_check CHECK (role IN ('administrator','user'));
EXCEPTION
  WHEN duplicate_object THEN NULL;
END$$;

CREATE TABLE IF NOT EXISTS scans (
  id UUID PRIMARY KEY,
  acunetix_scan_id TEXT NOT NULL,
  acunetix_target_id TEXT,
  target_url TEXT NOT NULL,
  scan_type TEXT NOT NULL DEFAULT 'full',
  status TEXT NOT NULL DEFAULT 'scheduled',
  progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
  threat_level TEXT,
  start_time TIMESTAMPTZ,
  end_time TIMESTAMPTZ,
  high_vulnerabilities INTEGER NOT NULL DEFAULT 0,
  medium_vulnerabilities INTEGER NOT NULL DEFAULT 0,
  low_vulnerabilities INTEGER NOT NULL DEFAULT 0,
  info_vulnerabilities INTEGER NOT NULL DEFAULT 0,
  report_id TEXT,
  report_format TEXT,
  report_key TEXT,
  user_id UUID NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE scans ADD COLUMN IF NOT EXISTS threat_level TEXT;
ALTER TABLE scans ADD COLUMN IF NOT EXISTS report_format TEXT;
ALTER TABLE scans ADD COLUMN IF NOT EXISTS report_key TEXT;

CREATE INDEX IF NOT EXISTS idx_scans_user_created ON scans (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scans_status_created ON scans (status, created_at);
CREATE INDEX IF NOT EXISTS idx_scans_report_id ON scans (report_id);
`)
	return err
}

// IsInsufficientPrivilege reports whether err is a Postgres permission error.
func IsInsufficientPrivilege(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "42501"
}

func isUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
