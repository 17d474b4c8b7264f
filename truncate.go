package pyout

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// defaultMarker indicates truncation unless the width style overrides it.
const defaultMarker = "..."

var ansiRE = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b[@-Z\\-_]`)

// stripANSI removes escape sequences so they never count toward width.
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiRE.ReplaceAllString(s, "")
}

// displayWidth is the number of terminal cells s occupies.
func displayWidth(s string) int {
	return runewidth.StringWidth(stripANSI(s))
}

// truncater cuts rendered values down to the field width. Its length is
// updated in place when width negotiation resizes the column.
type truncater struct {
	length int
	marker string
	side   TruncateSide
}

func newTruncater(length int, marker *string, side TruncateSide) *truncater {
	m := defaultMarker
	if marker != nil {
		m = *marker
	}
	return &truncater{length: length, marker: m, side: side}
}

func (t *truncater) truncate(_ any, result string) (string, error) {
	switch t.side {
	case TruncateLeft:
		return truncateLeft(result, t.length, t.marker), nil
	case TruncateCenter:
		return truncateCenter(result, t.length, t.marker), nil
	default:
		return truncateRight(result, t.length, t.marker), nil
	}
}

func truncateRight(value string, length int, marker string) string {
	if displayWidth(value) <= length {
		return value
	}
	if marker != "" {
		if free := length - runewidth.StringWidth(marker); free > 0 {
			return runewidth.Truncate(value, free, "") + marker
		}
		return runewidth.Truncate(marker, length, "")
	}
	return runewidth.Truncate(value, length, "")
}

func truncateLeft(value string, length int, marker string) string {
	if displayWidth(value) <= length {
		return value
	}
	if marker != "" {
		if free := length - runewidth.StringWidth(marker); free > 0 {
			return marker + runewidth.TruncateLeft(value, displayWidth(value)-free, "")
		}
		return runewidth.Truncate(marker, length, "")
	}
	return runewidth.TruncateLeft(value, displayWidth(value)-length, "")
}

func truncateCenter(value string, length int, marker string) string {
	if displayWidth(value) <= length {
		return value
	}
	if marker != "" {
		if free := length - runewidth.StringWidth(marker); free > 0 {
			left, right := splice(value, free)
			return left + marker + right
		}
		return runewidth.Truncate(marker, length, "")
	}
	left, right := splice(value, length)
	return left + right
}

// splice drops cells from the center of value until the two retained ends
// total at most n cells.
func splice(value string, n int) (string, string) {
	runes := []rune(value)
	center := len(runes) / 2
	left, right := string(runes[:center]), string(runes[center:])

	lw, rw := runewidth.StringWidth(left), runewidth.StringWidth(right)
	// Trim the wider side first so the ends stay balanced.
	for lw+rw > n {
		if lw >= rw {
			lr := []rune(left)
			lr = lr[:len(lr)-1]
			left = string(lr)
			lw = runewidth.StringWidth(left)
		} else {
			rr := []rune(right)
			rr = rr[1:]
			right = string(rr)
			rw = runewidth.StringWidth(right)
		}
	}
	return left, right
}
