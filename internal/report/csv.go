package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/proctorhub/backend/internal/session"
)

var csvHeader = []string{"Timestamp", "Event Type", "Severity", "Description", "Confidence"}

// WriteCSV renders a session's event history as CSV, one row per
// event in history order.
func WriteCSV(w io.Writer, events []*session.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			ev.Kind.String(),
			ev.Severity.String(),
			ev.Description,
			strconv.FormatFloat(ev.Confidence, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
