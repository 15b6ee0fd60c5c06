package server

import "time"

// Config holds server configuration.
type Config struct {
	Addr string

	// CORS settings; an empty list allows every origin
	CORSOrigins []string

	// HTTP timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults. WriteTimeout is
// generous because report downloads stream large bodies.
func DefaultConfig() Config {
	return Config{
		Addr:            ":3000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}
