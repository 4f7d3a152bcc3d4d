package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Report is the write-once summary of one pipeline run.
type Report struct {
	Timestamp    time.Time `json:"timestamp"`
	Results      []Record  `json:"results"`
	TotalTime    float64   `json:"total_time"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
}

// BuildReport assembles a report from finalized records.
func BuildReport(records []Record) *Report {
	rep := &Report{
		Timestamp: time.Now(),
		Results:   records,
	}
	for _, rec := range records {
		rep.TotalTime += rec.Duration
		switch rec.Status {
		case StatusSuccess:
			rep.SuccessCount++
		case StatusFailed:
			rep.FailedCount++
		}
	}
	return rep
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
