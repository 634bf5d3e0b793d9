package stats

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/model"
	"github.com/verte-zerg/analogrec/internal/recorder"
)

// LogReport summarizes one recorded log.
type LogReport struct {
	Path         string
	Records      int
	EmptyRecords int
	PeakKeys     int
	First        float64
	Last         float64
	Keys         []model.KeyAggregate
	// Series holds one value per record for each requested key, 0 when the
	// key was not active in that record.
	Series map[uint16][]float64
}

// Duration returns the time between the first and last record.
func (r LogReport) Duration() time.Duration {
	if r.Records < 2 {
		return 0
	}
	return time.Duration((r.Last - r.First) * float64(time.Second))
}

// PollRate returns the mean number of records per second.
func (r LogReport) PollRate() float64 {
	d := r.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(r.Records-1) / d
}

// AnalyzeLog reads the log at path and aggregates it. Series are collected
// for the given key codes.
func AnalyzeLog(path string, series []uint16) (LogReport, error) {
	report := LogReport{Path: path, Series: map[uint16][]float64{}}
	for _, code := range series {
		report.Series[code] = nil
	}
	byCode := map[uint16]*model.KeyAggregate{}
	err := recorder.ReadLog(path, func(rec model.Record) error {
		addRecord(&report, byCode, rec)
		return nil
	})
	if err != nil {
		return LogReport{}, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	report.Keys = make([]model.KeyAggregate, 0, len(byCode))
	for _, agg := range byCode {
		report.Keys = append(report.Keys, *agg)
	}
	sort.Slice(report.Keys, func(i, j int) bool { return report.Keys[i].Code < report.Keys[j].Code })
	return report, nil
}

// addRecord folds rec into report and the per-key aggregates.
func addRecord(report *LogReport, byCode map[uint16]*model.KeyAggregate, rec model.Record) {
	if report.Records == 0 {
		report.First = rec.Timestamp
	}
	report.Last = rec.Timestamp
	report.Records++
	if rec.KeyCount == 0 {
		report.EmptyRecords++
	}
	if rec.KeyCount > report.PeakKeys {
		report.PeakKeys = rec.KeyCount
	}
	for _, slot := range rec.Slots {
		agg, ok := byCode[slot.Code]
		if !ok {
			agg = &model.KeyAggregate{Code: slot.Code}
			byCode[slot.Code] = agg
		}
		agg.Observations++
		agg.ValueSum += float64(slot.Value)
		if slot.Value > agg.Peak {
			agg.Peak = slot.Value
		}
	}
	for code, values := range report.Series {
		v := 0.0
		for _, slot := range rec.Slots {
			if slot.Code == code {
				v = float64(slot.Value)
				break
			}
		}
		report.Series[code] = append(values, v)
	}
}

// MeanValue returns the mean analog value of an aggregate.
func MeanValue(agg model.KeyAggregate) float64 {
	if agg.Observations == 0 {
		return 0
	}
	return agg.ValueSum / float64(agg.Observations)
}

// RenderSummary prints the log summary block.
func RenderSummary(w io.Writer, r LogReport) error {
	lines := []string{
		fmt.Sprintf("Log: %s", r.Path),
		fmt.Sprintf("Records: %d (%d empty)", r.Records, r.EmptyRecords),
		fmt.Sprintf("Duration: %s", r.Duration().Round(time.Millisecond)),
		fmt.Sprintf("Poll rate: %.1f Hz", r.PollRate()),
		fmt.Sprintf("Peak simultaneous keys: %d", r.PeakKeys),
		fmt.Sprintf("Distinct keys: %d", len(r.Keys)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderKeyTable prints the top keys by observation count.
func RenderKeyTable(w io.Writer, aggs []model.KeyAggregate, top int) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No key observations found.")
		return err
	}
	headers := []string{"Key", "Code", "Observations", "Peak", "Mean"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range TopKeys(aggs, top) {
		rows = append(rows, []string{
			device.KeyName(agg.Code),
			fmt.Sprintf("%d", agg.Code),
			fmt.Sprintf("%d", agg.Observations),
			fmt.Sprintf("%.3f", agg.Peak),
			fmt.Sprintf("%.3f", MeanValue(agg)),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderSessions prints indexed sessions as a table.
func RenderSessions(w io.Writer, sessions []model.Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	headers := []string{"Started", "Duration", "Records", "Errors", "Start", "Stop", "Log"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
			fmt.Sprintf("%d", s.Records),
			fmt.Sprintf("%d", s.ReadErrors),
			device.KeyName(s.StartCode),
			device.KeyName(s.StopCode),
			s.LogPath,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
