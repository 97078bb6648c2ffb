package evaluate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Report files, relative to a run directory.
const (
	ReportDir                = "report"
	ClassificationReportFile = "classification_performance.json"
	RegressionReportFile     = "regression_performance.json"
)

// Reporter writes performance reports under a run directory.
type Reporter struct {
	dir string
}

// NewReporter creates a reporter for runDir.
func NewReporter(runDir string) *Reporter {
	return &Reporter{dir: filepath.Join(runDir, ReportDir)}
}

// Write stores every non-nil report and returns the written paths.
func (r *Reporter) Write(reports *Reports) ([]string, error) {
	var written []string
	if reports.Classification != nil {
		p := filepath.Join(r.dir, ClassificationReportFile)
		if err := writeReport(p, reports.Classification); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if reports.Regression != nil {
		p := filepath.Join(r.dir, RegressionReportFile)
		if err := writeReport(p, reports.Regression); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// writeReport writes through a temporary file so readers never observe a
// partial report.
func writeReport(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("evaluate: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("evaluate: create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("evaluate: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("evaluate: finalize %s: %w", path, err)
	}
	return nil
}
