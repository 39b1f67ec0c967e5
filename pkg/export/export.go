// Package export serializes dispatch history for offline reporting.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/carelink/dispatchd/infra/history"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []history.Record) error {
	enc := json.NewEncoder(w)
	return enc.Encode(recs)
}

// WriteCSV writes the records to w with a fixed header row.
func WriteCSV(w io.Writer, recs []history.Record) error {
	cw := csv.NewWriter(w)
	header := []string{
		"alert_id", "alert_type", "priority", "ambulance_id", "driver_id",
		"outcome", "reason", "distance_km", "response_seconds",
		"created_at", "closed_at",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		distance := ""
		if r.DistanceKm != nil {
			distance = strconv.FormatFloat(*r.DistanceKm, 'f', -1, 64)
		}
		response := ""
		if sec, ok := r.ResponseSeconds(); ok {
			response = strconv.FormatFloat(sec, 'f', -1, 64)
		}
		rec := []string{
			r.AlertID,
			r.AlertType,
			string(r.Priority),
			r.AmbulanceID,
			r.DriverID,
			r.Outcome,
			r.Reason,
			distance,
			response,
			r.CreatedAt.Format(time.RFC3339),
			r.ClosedAt.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
