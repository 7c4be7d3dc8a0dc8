package attendance

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"faceattend/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// ExportFilename names the CSV attachment for a date range.
func ExportFilename(start, end time.Time) string {
	return fmt.Sprintf("attendance_%s_to_%s.csv", start.Format(dayLayout), end.Format(dayLayout))
}

// WriteCSV writes one line per row, timestamps rendered in loc.
func WriteCSV(w io.Writer, rows []models.Attendance, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Student Name", "Registration Number", "Timestamp"}); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{row.Student.Name, row.Student.RegistrationNumber, row.Timestamp.In(loc).Format(timestampLayout)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
