package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		value   string
		want    bool
	}{
		{"empty matches anything", "", "FI", true},
		{"star matches anything", "*", "anything", true},
		{"exact match", "FI", "FI", true},
		{"exact match case-insensitive", "fi", "FI", true},
		{"exact mismatch", "FI", "SE", false},
		{"comma list hit", "FI,SE,NO", "SE", true},
		{"comma list miss", "FI,SE,NO", "DK", false},
		{"comma list with spaces", "FI, SE, NO", "NO", true},

		{"numeric range inside", "10-20", "15", true},
		{"numeric range lower bound", "10-20", "10", true},
		{"numeric range upper bound", "10-20", "20", true},
		{"numeric range outside", "10-20", "21", false},
		{"numeric range not lexicographic", "9-11", "10", true},
		{"lexicographic range", "AA-AC", "AB", true},
		{"lexicographic range outside", "AA-AC", "AD", false},
		{"mixed range falls back to lexicographic", "A1-A9", "A5", true},

		{"glob star", "02*", "02940", true},
		{"glob star miss", "02*", "12940", false},
		{"glob question mark", "0294?", "02940", true},
		{"glob question mark miss", "0294?", "0294", false},

		{"negation vetoes", "*,!FI", "FI", false},
		{"negation does not block others", "*,!FI", "SE", true},
		{"negation without positive never matches", "!FI", "SE", false},
		{"negated range", "00100-99999,!02000-02999", "02500", false},
		{"negated range passes outside", "00100-99999,!02000-02999", "03000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.value),
				"pattern %q value %q", tt.pattern, tt.value)
		})
	}
}
