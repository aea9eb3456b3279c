package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	m := NewMatcher([]string{"/health"})

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/foo", true},
		{"/users", false},
		{"", false},
		{"health", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(tt.path))
		})
	}
}

func TestMatchesMultiplePrefixes(t *testing.T) {
	m := NewMatcher([]string{"/health", "/metrics"})

	assert.True(t, m.Matches("/metrics"))
	assert.True(t, m.Matches("/health/live"))
	assert.False(t, m.Matches("/orders"))
}

func TestEmptyConfigIgnoresNothing(t *testing.T) {
	for _, m := range []*Matcher{NewMatcher(nil), NewMatcher([]string{"", "  "})} {
		assert.False(t, m.Matches("/health"))
		assert.False(t, m.Matches(""))
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("/health"))
}
