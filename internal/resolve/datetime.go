// internal/resolve/datetime.go
package resolve

import (
	"strings"
	"time"
)

// DateResolution carries an ISO calendar date when resolved.
type DateResolution struct {
	Status Status
	Method Method
	ISO    string
	Reason string
}

var relativeDays = map[string]int{
	"hoy": 0, "today": 0,
	"ayer": -1, "yesterday": -1,
	"anteayer": -2, "day before yesterday": -2,
}

// ResolveDate maps a date phrase to an ISO date against the supplied
// reference time. The caller injects now so resolution stays testable.
func ResolveDate(phrase string, now time.Time) *DateResolution {
	ref := strings.ToLower(strings.TrimSpace(phrase))
	if ref == "" {
		return &DateResolution{Status: StatusUnresolved, Reason: "empty date reference"}
	}

	if offset, ok := relativeDays[ref]; ok {
		return &DateResolution{
			Status: StatusResolved,
			Method: MethodNormalized,
			ISO:    now.AddDate(0, 0, offset).Format("2006-01-02"),
		}
	}

	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006"} {
		if parsed, err := time.Parse(layout, ref); err == nil {
			return &DateResolution{
				Status: StatusResolved,
				Method: MethodExact,
				ISO:    parsed.Format("2006-01-02"),
			}
		}
	}

	return &DateResolution{Status: StatusUnresolved, Reason: "unrecognized date reference"}
}
