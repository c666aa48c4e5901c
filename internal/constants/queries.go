package constants

const (
	// OverallTripStats sums the lifetime trip aggregates for one vehicle.
	// Fuel is reconstructed from per-trip consumption and distance.
	OverallTripStats = `
	SELECT
		COALESCE(SUM(distance_km), 0)                                  AS total_distance,
		COALESCE(SUM(ev_distance_km), 0)                               AS total_ev_distance,
		COALESCE(SUM(fuel_consumption_l_100km * distance_km / 100), 0) AS total_fuel,
		COALESCE(SUM(duration_seconds), 0)                             AS total_duration_seconds
	FROM trips
	WHERE vin = ?
	`

	// DailyTripStats aggregates trips per calendar day of their start time.
	// Days without trips are absent here; the caller fills the gaps. The
	// %s slot takes a driver-specific date expression.
	DailyTripStats = `
	SELECT
		%[1]s                                                          AS day,
		COALESCE(SUM(distance_km), 0)                                  AS distance,
		COALESCE(SUM(fuel_consumption_l_100km * distance_km / 100), 0) AS fuel,
		COALESCE(SUM(ev_distance_km), 0)                               AS ev_distance,
		COALESCE(SUM(ev_duration_seconds), 0)                          AS ev_duration,
		AVG(score_global)                                              AS avg_score,
		COALESCE(SUM(duration_seconds), 0)                             AS total_duration
	FROM trips
	WHERE vin = ? AND start_timestamp >= ?
	GROUP BY %[1]s
	`

	// GeocodeStatus counts trips still awaiting reverse geocoding.
	GeocodeStatus = `
	SELECT
		COUNT(CASE WHEN start_address = ? THEN 1 END) AS pending,
		COUNT(*)                                      AS total
	FROM trips
	`
)
