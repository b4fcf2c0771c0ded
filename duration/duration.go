package duration

import (
	"strconv"
	"strings"
	"time"

	"notekeeper/timezone"

	"github.com/jmhodges/clock"
)

// Layout of absolute dates users may enter, e.g. "01-08-2024 12:00".
const AbsoluteLayout = "02-01-2006 15:04"

var clk = clock.New()

// Single-character unit suffixes of relative tokens: минуты, часы, дни, недели.
var units = map[rune]time.Duration{
	'м': time.Minute,
	'ч': time.Hour,
	'д': 24 * time.Hour,
	'н': 7 * 24 * time.Hour,
}

// Resolve maps a free-text token to a concrete reminder time. A token is
// either an absolute date in AbsoluteLayout or a relative shorthand like
// "10м" meaning now plus ten minutes. Malformed tokens yield ok=false;
// Resolve never returns an error to the caller.
func Resolve(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}

	if strings.Count(token, "-") == 2 {
		t, err := time.ParseInLocation(AbsoluteLayout, token, timezone.Display())
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	return relative(token)
}

func relative(token string) (time.Time, bool) {
	runes := []rune(token)
	unit, ok := units[runes[len(runes)-1]]
	if !ok {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(string(runes[:len(runes)-1]))
	if err != nil {
		return time.Time{}, false
	}

	return clk.Now().Add(time.Duration(n) * unit), true
}
