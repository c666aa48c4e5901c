package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/logging"
	gormModels "motorpool/paddock/internal/models/gorm"
)

// ImportTripsHandler handles POST /api/import/trips. The upload is a
// semicolon-delimited CSV export whose filename starts with the VIN
// (VIN_start-date_end-date.csv); decimal values use a comma separator.
func ImportTripsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()

		file, header, err := r.FormFile("file")
		if err != nil {
			common.RespondError(w, initTime, err, "missing file upload", http.StatusBadRequest)
			return
		}
		defer file.Close()

		vin, err := vinFromFilename(header.Filename)
		if err != nil {
			common.RespondError(w, initTime, err, "invalid filename", http.StatusBadRequest)
			return
		}

		trips, parseSkipped := parseTripCSV(file)

		res, err := deps.Services.Fetcher.ReconcileImported(r.Context(), vin, trips)
		if err != nil {
			logging.Error("CSV import transaction failed", "vin", vin, "error", err.Error())
			common.RespondError(w, initTime, err, "import failed, all rows rolled back")
			return
		}
		res.Skipped += parseSkipped

		common.RespondSuccess(w, initTime, "Import complete.", res)
	}
}

// vinFromFilename extracts the VIN from a 'VIN_start_end.csv' upload name.
func vinFromFilename(filename string) (string, error) {
	vin := strings.SplitN(filename, "_", 2)[0]
	if len(vin) < 17 {
		return "", fmt.Errorf("filename %q does not start with a valid VIN", filename)
	}
	return vin, nil
}

// parseTripCSV reads the export rows, returning the parseable trips and the
// number of rows dropped. Row layout: start address; start time; end
// address; end time; distance; consumption.
func parseTripCSV(r io.Reader) ([]gormModels.Trip, int) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	var trips []gormModels.Trip
	skipped := 0
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if first {
			// Header row.
			first = false
			continue
		}
		if len(row) < 6 {
			skipped++
			continue
		}

		start, err1 := parseCSVTime(row[1])
		end, err2 := parseCSVTime(row[3])
		distance, err3 := parseCSVFloat(row[4])
		consumption, err4 := parseCSVFloat(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			skipped++
			continue
		}

		trips = append(trips, gormModels.Trip{
			StartTimestamp:        start.UTC(),
			EndTimestamp:          end.UTC(),
			StartAddress:          row[0],
			EndAddress:            row[2],
			DistanceKm:            distance,
			FuelConsumptionL100Km: consumption,
		})
	}

	return trips, skipped
}

// parseCSVFloat accepts a comma decimal separator.
func parseCSVFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range csvTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
