// Package archive reads the campus energy archive, which publishes one CSV
// export per calendar day.
package archive

import (
	"fmt"
	"strings"

	"github.com/i474232898/campus-energy-week/internal/energy"
)

// DefaultBaseURL is the archive directory holding the daily exports.
const DefaultBaseURL = "https://observatory.middlebury.edu/campus/energy/archive/"

// Locate returns the address of the all-locations export for the given day
// on the default archive. Day and month are zero-padded; nothing is validated.
func Locate(day, month, year int) string {
	return locate(DefaultBaseURL, day, month, year)
}

// Locator builds export addresses under BaseURL.
type Locator struct {
	BaseURL string
}

// Address returns the export address for d.
func (l Locator) Address(d energy.Date) string {
	base := l.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return locate(base, d.Day, int(d.Month), d.Year)
}

func locate(base string, day, month, year int) string {
	return fmt.Sprintf("%s%d%02d%02d-all.csv", base, year, month, day)
}
