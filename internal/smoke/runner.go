// Package smoke walks the EcoSort API through a fixed sequence of checks and
// reports each outcome, both for humans on the console and as a Report.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecosort/smoke/internal/client"
	"github.com/ecosort/smoke/internal/metrics"
	"github.com/ecosort/smoke/internal/models"
)

// API is the subset of the backend the runner exercises.
type API interface {
	Stats(ctx context.Context) (*client.Result[models.Stats], error)
	CreateUser(ctx context.Context, in models.UserPayload) (*client.Result[models.User], error)
	CreateClassification(ctx context.Context, in models.ClassificationPayload) (*client.Result[models.Classification], error)
	UpsertTruck(ctx context.Context, in models.TruckPayload) (*client.Result[models.Truck], error)
	ListUsers(ctx context.Context) (*client.Result[[]models.User], error)
	ListTrucks(ctx context.Context) (*client.Result[[]models.Truck], error)
}

type Options struct {
	RunID          string
	BaseURL        string // informational, copied into the Report
	ConnectTimeout time.Duration
	Settle         time.Duration // pause after the connectivity gate
	Pace           time.Duration // pause between later checks
	Fixtures       models.Fixtures
	Out            io.Writer
	Log            *slog.Logger
	Metrics        *metrics.Recorder // optional
}

type Runner struct {
	api   API
	opts  Options
	out   io.Writer
	log   *slog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

const banner = "======================================================================"

func New(api API, opts Options) *Runner {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		api:   api,
		opts:  opts,
		out:   opts.Out,
		log:   opts.Log.With(slog.String("run_id", opts.RunID)),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Run executes every check in Order. Only a failed connectivity gate or a
// cancelled context stops it early; individual check failures never do.
func (r *Runner) Run(ctx context.Context) *Report {
	rep := &Report{RunID: r.opts.RunID, BaseURL: r.opts.BaseURL, StartedAt: r.now().UTC()}
	defer func() {
		rep.FinishedAt = r.now().UTC()
		if r.opts.Metrics != nil {
			r.opts.Metrics.MarkRun(rep.FinishedAt, rep.Passed())
		}
	}()

	r.printf("%s\n🧪 BACKEND & DATABASE SMOKE TEST\n%s\n", banner, banner)

	gate := r.check(ctx, CheckConnectivity, r.connectivity)
	rep.Checks = append(rep.Checks, gate)
	if !gate.OK {
		r.abort(rep, "connectivity gate failed")
		r.printf("\n❌ Cannot proceed without API connection.\nPlease run: npm run dev\n")
		return rep
	}
	if !r.pause(ctx, rep, r.opts.Settle) {
		return rep
	}

	var userID string
	rep.Checks = append(rep.Checks, r.check(ctx, CheckCreateUser, func(ctx context.Context) CheckResult {
		var res CheckResult
		userID, res = r.createUser(ctx)
		return res
	}))
	if !r.pause(ctx, rep, r.opts.Pace) {
		return rep
	}

	if userID != "" {
		rep.Checks = append(rep.Checks, r.check(ctx, CheckClassification, func(ctx context.Context) CheckResult {
			return r.createClassification(ctx, userID)
		}))
		if !r.pause(ctx, rep, r.opts.Pace) {
			return rep
		}
	} else {
		r.printf("\n🗑️  Skipping Waste Classification (no user identifier)\n")
		rep.Checks = append(rep.Checks, r.skip(CheckClassification, "user creation produced no identifier"))
	}

	steps := []struct {
		name string
		fn   func(context.Context) CheckResult
	}{
		{CheckTruck, r.updateTruck},
		{CheckStatistics, r.statistics},
		{CheckListUsers, r.listUsers},
		{CheckListTrucks, r.listTrucks},
	}
	for i, st := range steps {
		rep.Checks = append(rep.Checks, r.check(ctx, st.name, st.fn))
		if i < len(steps)-1 && !r.pause(ctx, rep, r.opts.Pace) {
			return rep
		}
	}

	r.finish(rep)
	return rep
}

// check times fn, converts a panic into a failed result and records metrics.
func (r *Runner) check(ctx context.Context, name string, fn func(context.Context) CheckResult) (res CheckResult) {
	start := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			r.printf("❌ Error: %v\n", rec)
			res = CheckResult{Reason: fmt.Sprintf("panic: %v", rec)}
		}
		res.Name = name
		res.Duration = r.now().Sub(start)
		r.record(res)
	}()
	return fn(ctx)
}

func (r *Runner) skip(name, reason string) CheckResult {
	res := CheckResult{Name: name, Skipped: true, Reason: reason}
	r.record(res)
	return res
}

func (r *Runner) record(res CheckResult) {
	outcome := metrics.OutcomePass
	switch {
	case res.Skipped:
		outcome = metrics.OutcomeSkip
	case !res.OK:
		outcome = metrics.OutcomeFail
	}
	r.log.Info("check",
		slog.String("check", res.Name),
		slog.String("outcome", outcome),
		slog.Int("status", res.Status),
		slog.String("duration", res.Duration.String()),
		slog.String("reason", res.Reason),
	)
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveCheck(res.Name, outcome, res.Duration)
	}
}

// abort marks every check that never ran as skipped.
func (r *Runner) abort(rep *Report, reason string) {
	rep.Aborted = true
	rep.AbortReason = reason
	for _, name := range Order {
		if _, ok := rep.Check(name); !ok {
			rep.Checks = append(rep.Checks, r.skip(name, reason))
		}
	}
	r.log.Warn("run aborted", slog.String("reason", reason))
}

func (r *Runner) pause(ctx context.Context, rep *Report, d time.Duration) bool {
	if err := r.sleep(ctx, d); err != nil {
		r.printf("\n⚠️  Run interrupted: %v\n", err)
		r.abort(rep, "interrupted: "+err.Error())
		return false
	}
	return true
}

func (r *Runner) finish(rep *Report) {
	r.printf("\n%s\n✅ SMOKE RUN COMPLETE\n%s\n", banner, banner)
	var sb strings.Builder
	rep.WriteSummary(&sb)
	r.printf("%s", sb.String())
	if rep.Passed() {
		r.printf("\nYour backend and database are working correctly! 🎉\n")
	} else {
		r.printf("\nSome checks failed; see the output above.\n")
	}
	r.printf("\nNext steps:\n")
	r.printf("1. Set up MongoDB Atlas if you haven't already\n")
	r.printf("2. Update .env.local with your MongoDB connection string\n")
	r.printf("3. Run this test again to verify database connectivity\n")
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// failed prints err the way every check reports problems and turns it into a result.
func (r *Runner) failed(err error) CheckResult {
	var se *client.StatusError
	if errors.As(err, &se) {
		r.printf("❌ Failed: %d\n", se.Code)
		if body := strings.TrimSpace(string(se.Body)); body != "" {
			r.printf("%s\n", body)
		}
		return CheckResult{Status: se.Code, Reason: se.Error()}
	}
	r.printf("❌ Error: %v\n", err)
	return CheckResult{Reason: err.Error()}
}

func (r *Runner) connectivity(ctx context.Context) CheckResult {
	r.printf("Testing API connection...\n")
	cctx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()
	res, err := r.api.Stats(cctx)
	var netErr net.Error
	switch {
	case err == nil:
		r.printf("✅ API is running!\n")
		return CheckResult{OK: true, Status: res.Status}
	case ctx.Err() != nil:
		r.printf("⚠️  Connection check interrupted\n")
		return CheckResult{Reason: err.Error()}
	case errors.Is(err, client.ErrMalformed):
		// the gate only cares that the API answered 200
		r.printf("✅ API is running!\n")
		return CheckResult{OK: true, Status: 200, Reason: "stats body malformed"}
	case client.StatusCode(err) != 0:
		code := client.StatusCode(err)
		r.printf("❌ API returned status code: %d\n", code)
		return CheckResult{Status: code, Reason: err.Error()}
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		r.printf("❌ API did not answer within %s\n", r.opts.ConnectTimeout)
		return CheckResult{Reason: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		// the HTTP client's own timeout fired before the connect deadline
		r.printf("❌ API did not answer before the request timeout\n")
		return CheckResult{Reason: err.Error()}
	case errors.Is(err, client.ErrUnreachable):
		r.printf("❌ Cannot connect to API. Make sure the server is running (npm run dev)\n")
		return CheckResult{Reason: err.Error()}
	}
	return r.failed(err)
}

// createUser returns the identifier later checks reference the user by.
func (r *Runner) createUser(ctx context.Context) (string, CheckResult) {
	r.printf("\n📝 Testing User Creation...\n")
	in := r.opts.Fixtures.User
	res, err := r.api.CreateUser(ctx, in)
	if err != nil {
		if client.IsConflict(err) {
			r.printf("⚠️  User already exists (this is okay)\n")
			return in.Email, CheckResult{OK: true, Status: client.StatusCode(err), Reason: "already exists"}
		}
		return "", r.failed(err)
	}
	r.printf("✅ User created successfully!\n")
	r.printf("   Email: %s\n", res.Data.Email)
	r.printf("   Name: %s\n", res.Data.Name)
	return res.Data.Email, CheckResult{OK: true, Status: res.Status}
}

func (r *Runner) createClassification(ctx context.Context, userID string) CheckResult {
	r.printf("\n🗑️  Testing Waste Classification...\n")
	in := r.opts.Fixtures.Classification
	in.UserID = userID
	res, err := r.api.CreateClassification(ctx, in)
	if err != nil {
		return r.failed(err)
	}
	r.printf("✅ Classification saved successfully!\n")
	r.printf("   Type: %s\n", res.Data.WasteType)
	r.printf("   Confidence: %g%%\n", res.Data.Confidence)
	r.printf("   Weight: %gkg\n", res.Data.Weight)
	return CheckResult{OK: true, Status: res.Status}
}

func (r *Runner) updateTruck(ctx context.Context) CheckResult {
	r.printf("\n🚛 Testing Truck Location Update...\n")
	res, err := r.api.UpsertTruck(ctx, r.opts.Fixtures.Truck)
	if err != nil {
		return r.failed(err)
	}
	r.printf("✅ Truck location updated!\n")
	r.printf("   Truck: %s\n", res.Data.TruckName)
	r.printf("   Status: %s\n", res.Data.Status)
	r.printf("   Load: %g%%\n", res.Data.WasteLoad)
	return CheckResult{OK: true, Status: res.Status}
}

func (r *Runner) statistics(ctx context.Context) CheckResult {
	r.printf("\n📊 Testing Statistics Endpoint...\n")
	res, err := r.api.Stats(ctx)
	if err != nil {
		return r.failed(err)
	}
	r.printf("✅ Statistics retrieved!\n")
	r.printf("   Total Classifications: %d\n", res.Data.TotalCount)
	if len(res.Data.ByType) > 0 {
		r.printf("   By Type:\n")
		for _, t := range res.Data.ByType {
			r.printf("     - %s: %d items\n", t.WasteType, t.Count)
		}
	}
	return CheckResult{OK: true, Status: res.Status}
}

func (r *Runner) listUsers(ctx context.Context) CheckResult {
	r.printf("\n👥 Testing Get Users Endpoint...\n")
	res, err := r.api.ListUsers(ctx)
	if err != nil {
		return r.failed(err)
	}
	r.printf("✅ Users retrieved!\n")
	r.printf("   Total Users: %d\n", res.Count)
	return CheckResult{OK: true, Status: res.Status}
}

func (r *Runner) listTrucks(ctx context.Context) CheckResult {
	r.printf("\n🚚 Testing Get Trucks Endpoint...\n")
	res, err := r.api.ListTrucks(ctx)
	if err != nil {
		return r.failed(err)
	}
	r.printf("✅ Trucks retrieved!\n")
	r.printf("   Total Trucks: %d\n", res.Count)
	if res.Count > 0 && len(res.Data) > 0 {
		r.printf("   Sample: %s\n", res.Data[0].TruckName)
	}
	return CheckResult{OK: true, Status: res.Status}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
