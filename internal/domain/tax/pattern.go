package tax

import (
	"path"
	"strconv"
	"strings"
)

// MatchPattern reports whether value matches the rule pattern language:
//
//   - the pattern is a comma-separated list of atoms
//   - "*" (or an empty pattern) matches anything
//   - a bare atom matches the value exactly, case-insensitively
//   - "min-max" matches inclusively; numerically when both bounds and the
//     value parse as integers, lexicographically otherwise
//   - atoms containing "*" or "?" are glob patterns
//   - a leading "!" negates the atom; any matching negative atom vetoes
//     the whole pattern regardless of positive matches
func MatchPattern(pattern, value string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	value = strings.ToUpper(strings.TrimSpace(value))

	matched := false
	vetoed := false
	for _, atom := range strings.Split(pattern, ",") {
		atom = strings.ToUpper(strings.TrimSpace(atom))
		if atom == "" {
			continue
		}
		negate := strings.HasPrefix(atom, "!")
		if negate {
			atom = strings.TrimSpace(atom[1:])
		}
		if !matchAtom(atom, value) {
			continue
		}
		if negate {
			vetoed = true
		} else {
			matched = true
		}
	}
	return matched && !vetoed
}

func matchAtom(atom, value string) bool {
	if atom == "*" {
		return true
	}
	if strings.ContainsAny(atom, "*?") {
		ok, err := path.Match(atom, value)
		return err == nil && ok
	}
	if lo, hi, ok := splitRange(atom); ok {
		return matchRange(lo, hi, value)
	}
	return atom == value
}

// splitRange splits a "min-max" atom. Atoms with more or less than one
// dash are not ranges.
func splitRange(atom string) (lo, hi string, ok bool) {
	if strings.Count(atom, "-") != 1 {
		return "", "", false
	}
	i := strings.IndexByte(atom, '-')
	lo, hi = strings.TrimSpace(atom[:i]), strings.TrimSpace(atom[i+1:])
	if lo == "" || hi == "" {
		return "", "", false
	}
	return lo, hi, true
}

// matchRange checks lo <= value <= hi, numerically when all three parse
// as integers and lexicographically otherwise.
func matchRange(lo, hi, value string) bool {
	nlo, err1 := strconv.Atoi(lo)
	nhi, err2 := strconv.Atoi(hi)
	nval, err3 := strconv.Atoi(value)
	if err1 == nil && err2 == nil && err3 == nil {
		return nlo <= nval && nval <= nhi
	}
	return lo <= value && value <= hi
}
