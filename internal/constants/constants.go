package constants

// GeocodePending marks a trip whose addresses have not been resolved yet.
// The geocoding worker only ever writes to trips still carrying this value.
const GeocodePending = "Geocoding..."

// GeocodeUnknown is stored when a reverse lookup fails or returns nothing.
const GeocodeUnknown = "Unknown"

// Unit conversion factors for the pre-computed imperial mirror columns.
const (
	KmToMi      = 0.621371
	MpgUSFactor = 235.214
	MpgUKFactor = 282.481
)

// ContentDedupToleranceKm is the distance tolerance used when matching
// imported trips by content instead of by start timestamp.
const ContentDedupToleranceKm = 0.1

// BackfillPeriodDays maps a manual backfill period name to its day span.
var BackfillPeriodDays = map[string]int{
	"week":  7,
	"month": 31,
	"year":  365,
	"all":   365 * 5,
}
