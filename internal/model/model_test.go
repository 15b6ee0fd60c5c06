package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScanType(t *testing.T) {
	tests := []struct {
		in      string
		want    ScanType
		profile string
		ok      bool
	}{
		{"", ScanTypeFull, ProfileFull, true},
		{"full", ScanTypeFull, ProfileFull, true},
		{"Quick", ScanTypeQuick, ProfileQuick, true},
		{"custom", ScanTypeCustom, ProfileFull, true},
		{"deep", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseScanType(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.profile, got.ProfileID())
			}
		})
	}
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusFailed, StatusAborted} {
		assert.True(t, IsTerminal(s), s)
		assert.False(t, IsActive(s), s)
	}
	for _, s := range ActiveStatuses {
		assert.False(t, IsTerminal(s), s)
		assert.True(t, IsActive(s), s)
	}
	assert.False(t, IsActive(StatusPaused))
}

func TestParseSeverities(t *testing.T) {
	got, err := ParseSeverities("1, 3,high,0")
	require.NoError(t, err)
	assert.Equal(t, []Severity{SeverityHigh, SeverityLow, SeverityInfo}, got)

	got, err = ParseSeverities("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseSeverities("4")
	assert.Error(t, err)
	_, err = ParseSeverities("-1")
	assert.Error(t, err)
	_, err = ParseSeverities("critical")
	assert.Error(t, err)
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	for _, sev := range []Severity{3, 3, 2, 1, 0, 0, 0, 7} {
		s.Add(sev)
	}
	assert.Equal(t, Summary{High: 2, Medium: 1, Low: 1, Info: 3}, s)
	assert.Equal(t, 7, s.Total())
	assert.Equal(t, SeverityView{High: 2, Medium: 1, Low: 1, Info: 3, Total: 7}, s.View())
}

func TestPagination(t *testing.T) {
	p := NewPagination(Page{Number: 2, Limit: 10}, 25)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, Total: 25, HasNext: true, HasPrev: true}, p)

	p = NewPagination(Page{}, 0)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)

	assert.Equal(t, MaxPageLimit, Page{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 20, Page{Number: 3, Limit: 10}.Offset())

	huge := Page{Number: 2e18, Limit: 10}
	assert.Equal(t, MaxPageNumber, huge.Normalize().Number)
	assert.Equal(t, (MaxPageNumber-1)*10, huge.Offset())
	assert.Greater(t, huge.Offset(), 0)
	assert.False(t, NewPagination(huge, 25).HasNext)
}

func TestUserScope(t *testing.T) {
	admin := &User{ID: "a", Role: RoleAdministrator}
	regular := &User{ID: "u", Role: RoleUser}

	assert.Nil(t, admin.Scope())
	require.NotNil(t, regular.Scope())
	assert.Equal(t, "u", *regular.Scope())
}
