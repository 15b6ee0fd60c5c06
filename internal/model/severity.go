package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Severity is the engine's numeric vulnerability level.
type Severity int

const (
	SeverityInfo   Severity = 0
	SeverityLow    Severity = 1
	SeverityMedium Severity = 2
	SeverityHigh   Severity = 3
)

// Valid reports whether s is within the engine's 0-3 range.
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityHigh
}

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	}
	return "unknown"
}

// ParseSeverities parses a comma separated list such as "3,2" or "high,medium".
// Duplicates are dropped and the result is ordered from high to info.
func ParseSeverities(raw string) ([]Severity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	seen := map[Severity]struct{}{}
	var out []Severity
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		sev, err := parseSeverity(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[sev]; dup {
			continue
		}
		seen[sev] = struct{}{}
		out = append(out, sev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out, nil
}

func parseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Severity(n).Valid() {
		return 0, fmt.Errorf("invalid severity %q: must be between 0 and 3", s)
	}
	return Severity(n), nil
}
