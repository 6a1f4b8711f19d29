package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column names, in ledger order.
const (
	ColumnProject    = "Project"
	ColumnReturnCode = "ReturnCode"
	ColumnStartTime  = "StartTime"
	ColumnDuration   = "Duration"
	ColumnLogPrefix  = "LogPrefix"
)

// TimeLayout is the StartTime format, second resolution.
const TimeLayout = "2006-01-02 15:04:05"

// Columns returns the fixed header row.
func Columns() []string {
	return []string{ColumnProject, ColumnReturnCode, ColumnStartTime, ColumnDuration, ColumnLogPrefix}
}

// Result is one recorded build.
type Result struct {
	Project    string
	ReturnCode int
	StartTime  time.Time
	Duration   time.Duration
	LogPrefix  string
}

// Row projects r onto Columns.
func (r Result) Row() []string {
	return []string{
		r.Project,
		strconv.Itoa(r.ReturnCode),
		r.StartTime.Format(TimeLayout),
		FormatDuration(r.Duration),
		r.LogPrefix,
	}
}

// FormatDuration renders d as H:MM:SS, truncating sub-second precision.
// Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// ParseDuration is the inverse of FormatDuration.
func ParseDuration(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("duration %q: want H:MM:SS", raw)
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && (len(p) != 2 || n > 59)) {
			return 0, fmt.Errorf("duration %q: bad field %q", raw, p)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// parseRow decodes one data row written by Row.
func parseRow(row []string) (Result, error) {
	if len(row) != len(Columns()) {
		return Result{}, fmt.Errorf("row has %d fields, want %d", len(row), len(Columns()))
	}
	code, err := strconv.Atoi(row[1])
	if err != nil {
		return Result{}, fmt.Errorf("%s %q: %w", ColumnReturnCode, row[1], err)
	}
	start, err := time.ParseInLocation(TimeLayout, row[2], time.Local)
	if err != nil {
		return Result{}, fmt.Errorf("%s %q: %w", ColumnStartTime, row[2], err)
	}
	d, err := ParseDuration(row[3])
	if err != nil {
		return Result{}, err
	}
	return Result{
		Project:    row[0],
		ReturnCode: code,
		StartTime:  start,
		Duration:   d,
		LogPrefix:  row[4],
	}, nil
}
