package smoke

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepResult describes the outcome of a single check as persisted to disk.
type StepResult struct {
	Name       string `json:"name"`
	Outcome    string `json:"outcome"`
	Status     int    `json:"status,omitempty"`
	DurationMS int64  `json:"durationMs"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// SuiteResult represents the JSON structure persisted for one run.
type SuiteResult struct {
	Suite       string       `json:"suite"`
	RunID       string       `json:"runId"`
	BaseURL     string       `json:"baseUrl"`
	StartedAt   string       `json:"startedAt"`
	CompletedAt string       `json:"completedAt"`
	DurationMS  int64        `json:"durationMs"`
	Success     bool         `json:"success"`
	Aborted     bool         `json:"aborted"`
	Steps       []StepResult `json:"steps"`
}

type testSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []testSuite `xml:"testsuite"`
}

type testSuite struct {
	XMLName    xml.Name   `xml:"testsuite"`
	Name       string     `xml:"name,attr"`
	Tests      int        `xml:"tests,attr"`
	Failures   int        `xml:"failures,attr"`
	Errors     int        `xml:"errors,attr"`
	Skipped    int        `xml:"skipped,attr"`
	Time       float64    `xml:"time,attr"`
	Timestamp  string     `xml:"timestamp,attr"`
	Properties []property `xml:"properties>property"`
	Cases      []testCase `xml:"testcase"`
}

type testCase struct {
	XMLName xml.Name     `xml:"testcase"`
	Name    string       `xml:"name,attr"`
	Class   string       `xml:"classname,attr"`
	Time    float64      `xml:"time,attr"`
	Failure *failureBody `xml:"failure"`
	Skipped *failureBody `xml:"skipped"`
}

type failureBody struct {
	Message string `xml:"message,attr,omitempty"`
	Text    string `xml:",chardata"`
}

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

const suiteName = "ecosort-smoke"

// WriteArtifacts persists rep under dir/smoke as summary.json, summary.txt
// and junit.xml.
func WriteArtifacts(dir string, rep *Report) error {
	base := filepath.Join(dir, "smoke")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	data, err := json.MarshalIndent(Suite(rep), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(base, "summary.json"), data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Smoke Summary\nStarted: %s\n\n", rep.StartedAt.Format(time.RFC3339))
	rep.WriteSummary(&buf)
	fmt.Fprintf(&buf, "\nPASS=%v\n", rep.Passed())
	if err := os.WriteFile(filepath.Join(base, "summary.txt"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	buf.Reset()
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(junit(rep)); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(filepath.Join(base, "junit.xml"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write junit: %w", err)
	}
	return nil
}

// Suite converts a report into its persisted form.
func Suite(rep *Report) SuiteResult {
	out := SuiteResult{
		Suite:       suiteName,
		RunID:       rep.RunID,
		BaseURL:     rep.BaseURL,
		StartedAt:   rep.StartedAt.Format(time.RFC3339),
		CompletedAt: rep.FinishedAt.Format(time.RFC3339),
		DurationMS:  rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
		Success:     rep.Passed(),
		Aborted:     rep.Aborted,
		Steps:       make([]StepResult, 0, len(rep.Checks)),
	}
	for _, c := range rep.Checks {
		step := StepResult{
			Name:       c.Name,
			Outcome:    c.outcome(),
			Status:     c.Status,
			DurationMS: c.Duration.Milliseconds(),
			Success:    c.OK,
		}
		if !c.OK {
			step.Error = c.Reason
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

func junit(rep *Report) *testSuites {
	_, failed, skipped := rep.Counts()
	ts := testSuite{
		Name:      suiteName,
		Tests:     len(rep.Checks),
		Failures:  failed,
		Skipped:   skipped,
		Time:      rep.FinishedAt.Sub(rep.StartedAt).Seconds(),
		Timestamp: rep.StartedAt.Format(time.RFC3339),
		Properties: []property{
			{Name: "run_id", Value: rep.RunID},
			{Name: "base_url", Value: rep.BaseURL},
		},
	}
	for _, c := range rep.Checks {
		tc := testCase{Name: c.Name, Class: "ecosort.smoke", Time: c.Duration.Seconds()}
		switch {
		case c.Skipped:
			tc.Skipped = &failureBody{Message: c.Reason}
		case !c.OK:
			tc.Failure = &failureBody{Message: oneLine(c.Reason), Text: c.Reason}
		}
		ts.Cases = append(ts.Cases, tc)
	}
	return &testSuites{Suites: []testSuite{ts}}
}
