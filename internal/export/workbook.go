// Package export renders slot lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"ptportal/internal/availability"
	"ptportal/internal/model"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const summarySheet = "Summary"

var slotColumns = []string{"Start", "End", "Available", "Booked", "Capacity", "Remaining"}

// sheetWriter appends rows to the current sheet of a workbook.
type sheetWriter struct {
	file        *excelize.File
	sheet       string
	row         int
	headerStyle int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &sheetWriter{file: f, headerStyle: style}, nil
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.writeRow(values); err != nil {
		return err
	}

	start, _ := excelize.CoordinatesToCellName(1, w.row-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	return w.file.SetCellStyle(w.sheet, start, end, w.headerStyle)
}

func (w *sheetWriter) writeRow(values []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return err
	}
	w.row++
	return nil
}

// WriteSlots writes a workbook with a summary sheet followed by one sheet
// per day. Times are rendered in loc.
func WriteSlots(out io.Writer, title string, slots []model.TimeSlot, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer func() { _ = w.file.Close() }()

	days := availability.GroupByDay(slots, loc)

	if err := w.addSheet(summarySheet); err != nil {
		return err
	}
	if title != "" {
		if err := w.writeRow([]any{title}); err != nil {
			return err
		}
	}
	if err := w.writeHeader([]string{"Date", "Weekday", "Slots", "Available"}); err != nil {
		return err
	}
	for _, day := range days {
		row := []any{day.Date.String(), day.Date.Weekday().String(), len(day.Slots), len(availability.AvailableOnly(day.Slots))}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	for _, day := range days {
		if err := w.addSheet(day.Date.String()); err != nil {
			return err
		}
		if err := w.writeHeader(slotColumns); err != nil {
			return err
		}
		for _, s := range day.Slots {
			available := "no"
			if s.Available {
				available = "yes"
			}
			row := []any{
				s.Start.In(loc).Format("15:04"),
				s.End.In(loc).Format("15:04"),
				available,
				s.BookingCount,
				s.MaxAthletes,
				max(s.MaxAthletes-s.BookingCount, 0),
			}
			if err := w.writeRow(row); err != nil {
				return err
			}
		}
	}

	w.file.SetActiveSheet(0)
	return w.file.Write(out)
}
