package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/activecm/threatfuse/util"
)

// helper functions for formatting floats and integers
func f(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
func i(i int64) string {
	return strconv.FormatInt(i, 10)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func seconds(s float64) string {
	return util.FormatDuration(time.Duration(s * float64(time.Second)))
}

// list joins values for a single csv cell
func list(values []string) string {
	return strings.Join(values, " ")
}

// limit trims n results down to the --limit flag unless --no-limit is set
func limit(n, max int, noLimit bool) int {
	if noLimit || max <= 0 || n < max {
		return n
	}
	return max
}
