package smoke

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Check names, in run order.
const (
	CheckConnectivity   = "connectivity"
	CheckCreateUser     = "create_user"
	CheckClassification = "create_classification"
	CheckTruck          = "update_truck"
	CheckStatistics     = "statistics"
	CheckListUsers      = "list_users"
	CheckListTrucks     = "list_trucks"
)

// Order is the fixed sequence a run walks through.
var Order = []string{
	CheckConnectivity,
	CheckCreateUser,
	CheckClassification,
	CheckTruck,
	CheckStatistics,
	CheckListUsers,
	CheckListTrucks,
}

// CheckResult is the outcome of one step. Reason is empty on a clean pass.
type CheckResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Skipped  bool          `json:"skipped,omitempty"`
	Status   int           `json:"status,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"-"`
}

func (c CheckResult) outcome() string {
	switch {
	case c.Skipped:
		return "SKIP"
	case c.OK:
		return "PASS"
	}
	return "FAIL"
}

type Report struct {
	RunID       string        `json:"runId"`
	BaseURL     string        `json:"baseUrl"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Aborted     bool          `json:"aborted"`
	AbortReason string        `json:"abortReason,omitempty"`
	Checks      []CheckResult `json:"checks"`
}

// Counts tallies the recorded checks.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, c := range r.Checks {
		switch {
		case c.Skipped:
			skipped++
		case c.OK:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

// Passed is true when the run was not aborted and no check failed.
func (r *Report) Passed() bool {
	_, failed, _ := r.Counts()
	return !r.Aborted && failed == 0
}

func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// WriteSummary renders the fixed-width table used on the console and in summary.txt.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Run %s against %s\n", r.RunID, r.BaseURL)
	for _, c := range r.Checks {
		status := "-"
		if c.Status != 0 {
			status = fmt.Sprint(c.Status)
		}
		fmt.Fprintf(w, "  %-22s %-4s %3s %6dms %s\n", c.Name, c.outcome(), status, c.Duration.Milliseconds(), oneLine(c.Reason))
	}
	passed, failed, skipped := r.Counts()
	fmt.Fprintf(w, "passed=%d failed=%d skipped=%d aborted=%v\n", passed, failed, skipped, r.Aborted)
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 120
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
