package smoke

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosort/smoke/internal/client"
	"github.com/ecosort/smoke/internal/logging"
	"github.com/ecosort/smoke/internal/metrics"
	"github.com/ecosort/smoke/internal/mockapi"
	"github.com/ecosort/smoke/internal/models"
)

var fixedNow = time.Unix(1700000000, 0)

const submittedEmail = "test_1700000000@example.com"

// spyAPI records classification payloads on the way through.
type spyAPI struct {
	API
	classified []models.ClassificationPayload
}

func (s *spyAPI) CreateClassification(ctx context.Context, in models.ClassificationPayload) (*client.Result[models.Classification], error) {
	s.classified = append(s.classified, in)
	return s.API.CreateClassification(ctx, in)
}

type panicAPI struct{ API }

func (panicAPI) ListUsers(context.Context) (*client.Result[[]models.User], error) {
	panic("list users exploded")
}

func newBackend(t *testing.T) (*mockapi.Server, *client.Client) {
	t.Helper()
	mock := mockapi.New(logging.Discard())
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	return mock, c
}

func run(t *testing.T, api API, m *metrics.Recorder) (*Report, string) {
	t.Helper()
	out := &bytes.Buffer{}
	r := New(api, Options{
		RunID:          "test-run",
		ConnectTimeout: time.Second,
		Fixtures:       models.DefaultFixtures(fixedNow),
		Out:            out,
		Log:            logging.Discard(),
		Metrics:        m,
	})
	return r.Run(context.Background()), out.String()
}

func TestRunFullSuccessHitsEveryEndpointInOrder(t *testing.T) {
	mock, c := newBackend(t)

	rep, out := run(t, c, nil)

	assert.Equal(t, []string{
		"GET /waste-classifications/stats",
		"POST /users",
		"POST /waste-classifications",
		"POST /trucks",
		"GET /waste-classifications/stats",
		"GET /users",
		"GET /trucks",
	}, mock.Calls())
	require.Len(t, rep.Checks, len(Order))
	for i, name := range Order {
		assert.Equal(t, name, rep.Checks[i].Name)
		assert.True(t, rep.Checks[i].OK, "check %s: %s", name, rep.Checks[i].Reason)
	}
	assert.True(t, rep.Passed())
	assert.False(t, rep.Aborted)
	assert.Contains(t, out, "Email: "+submittedEmail)
	assert.Contains(t, out, "recyclable: 1 items")
	assert.Contains(t, out, "Sample: Delhi Waste Truck 1")
	assert.Contains(t, out, "SMOKE RUN COMPLETE")
	assert.Contains(t, out, "working correctly")
}

func TestRunAbortsWhenStatsIsNotOK(t *testing.T) {
	mock, c := newBackend(t)
	mock.Fail(http.MethodGet, client.PathStats, http.StatusServiceUnavailable)

	rep, out := run(t, c, nil)

	assert.Equal(t, []string{"GET /waste-classifications/stats"}, mock.Calls())
	assert.True(t, rep.Aborted)
	assert.False(t, rep.Passed())
	gate, ok := rep.Check(CheckConnectivity)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, gate.Status)
	assert.Contains(t, out, "API returned status code: 503")
	assert.Contains(t, out, "Cannot proceed without API connection")
	assert.NotContains(t, out, "SMOKE RUN COMPLETE")
	_, _, skipped := rep.Counts()
	assert.Equal(t, len(Order)-1, skipped)
}

func TestRunAbortsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := client.New(url)
	require.NoError(t, err)

	rep, out := run(t, c, nil)

	assert.True(t, rep.Aborted)
	assert.Contains(t, out, "Cannot connect to API")
}

func TestRunConnectivityTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() { close(release); srv.Close() })
	c, err := client.New(srv.URL)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	rep := New(c, Options{ConnectTimeout: 50 * time.Millisecond, Fixtures: models.DefaultFixtures(fixedNow), Out: out}).Run(context.Background())

	assert.True(t, rep.Aborted)
	assert.Contains(t, out.String(), "did not answer within 50ms")
}

func TestRunConnectivityClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() { close(release); srv.Close() })
	c, err := client.New(srv.URL, client.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	rep := New(c, Options{ConnectTimeout: 10 * time.Second, Fixtures: models.DefaultFixtures(fixedNow), Out: out}).Run(context.Background())

	assert.True(t, rep.Aborted)
	assert.Contains(t, out.String(), "did not answer before the request timeout")
	assert.NotContains(t, out.String(), "Cannot connect to API")
}

func TestRunConnectivityCancelledByCaller(t *testing.T) {
	mock, c := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &bytes.Buffer{}
	rep := New(c, Options{Fixtures: models.DefaultFixtures(fixedNow), Out: out}).Run(ctx)

	assert.True(t, rep.Aborted)
	assert.Contains(t, out.String(), "Connection check interrupted")
	assert.NotContains(t, out.String(), "Cannot connect to API")
	assert.NotContains(t, mock.Calls(), "POST /users")
}

func TestRunCreatedUserEmailFeedsClassification(t *testing.T) {
	_, c := newBackend(t)
	spy := &spyAPI{API: c}

	rep, _ := run(t, spy, nil)

	user, _ := rep.Check(CheckCreateUser)
	assert.Equal(t, http.StatusCreated, user.Status)
	require.Len(t, spy.classified, 1)
	assert.Equal(t, submittedEmail, spy.classified[0].UserID)
}

func TestRunConflictIsSoftSuccess(t *testing.T) {
	mock, c := newBackend(t)
	mock.SeedUser(models.User{Name: "Test User", Email: submittedEmail})
	spy := &spyAPI{API: c}

	rep, out := run(t, spy, nil)

	user, _ := rep.Check(CheckCreateUser)
	assert.True(t, user.OK)
	assert.Equal(t, http.StatusConflict, user.Status)
	assert.Contains(t, out, "User already exists (this is okay)")
	require.Len(t, spy.classified, 1)
	assert.Equal(t, submittedEmail, spy.classified[0].UserID)
	assert.True(t, rep.Passed())
}

func TestRunUserFailureSkipsClassification(t *testing.T) {
	mock, c := newBackend(t)
	mock.Fail(http.MethodPost, client.PathUsers, http.StatusInternalServerError)

	rep, out := run(t, c, nil)

	assert.NotContains(t, mock.Calls(), "POST /waste-classifications")
	cls, ok := rep.Check(CheckClassification)
	require.True(t, ok)
	assert.True(t, cls.Skipped)
	assert.Contains(t, out, "❌ Failed: 500")
	assert.Contains(t, mock.Calls(), "GET /trucks")
}

func TestRunClassificationFailureDoesNotStopRun(t *testing.T) {
	mock, c := newBackend(t)
	mock.Fail(http.MethodPost, client.PathClassifications, http.StatusInternalServerError)

	rep, out := run(t, c, nil)

	cls, _ := rep.Check(CheckClassification)
	assert.False(t, cls.OK)
	assert.Equal(t, http.StatusInternalServerError, cls.Status)
	assert.Contains(t, out, `"error":"Internal Server Error"`)
	calls := mock.Calls()
	assert.Equal(t, []string{
		"POST /trucks",
		"GET /waste-classifications/stats",
		"GET /users",
		"GET /trucks",
	}, calls[len(calls)-4:])
	assert.False(t, rep.Passed())
	assert.False(t, rep.Aborted)
	assert.Contains(t, out, "Some checks failed")
}

func TestRunMalformedReadsAreReported(t *testing.T) {
	mock, c := newBackend(t)
	mock.Malformed(http.MethodGet, client.PathStats)
	mock.Malformed(http.MethodGet, client.PathUsers)
	mock.Malformed(http.MethodGet, client.PathTrucks)

	rep, out := run(t, c, nil)

	gate, _ := rep.Check(CheckConnectivity)
	assert.True(t, gate.OK, "a 200 is enough to pass the gate")
	for _, name := range []string{CheckStatistics, CheckListUsers, CheckListTrucks} {
		res, ok := rep.Check(name)
		require.True(t, ok, name)
		assert.False(t, res.OK, name)
		assert.Contains(t, res.Reason, "malformed response", name)
	}
	truck, _ := rep.Check(CheckTruck)
	assert.True(t, truck.OK)
	assert.Contains(t, out, "❌ Error: malformed response")
	assert.Contains(t, out, "SMOKE RUN COMPLETE")
}

func TestRunRecoversFromPanickingCheck(t *testing.T) {
	_, c := newBackend(t)

	rep, out := run(t, panicAPI{API: c}, nil)

	res, _ := rep.Check(CheckListUsers)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "list users exploded")
	trucks, _ := rep.Check(CheckListTrucks)
	assert.True(t, trucks.OK)
	assert.Contains(t, out, "❌ Error: list users exploded")
}

func TestRunStopsWhenInterrupted(t *testing.T) {
	mock, c := newBackend(t)
	r := New(c, Options{Fixtures: models.DefaultFixtures(fixedNow), Pace: time.Hour})
	calls := 0
	r.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 2 {
			return context.Canceled
		}
		return nil
	}

	rep := r.Run(context.Background())

	assert.True(t, rep.Aborted)
	assert.Contains(t, rep.AbortReason, "interrupted")
	assert.Equal(t, []string{"GET /waste-classifications/stats", "POST /users"}, mock.Calls())
	require.Len(t, rep.Checks, len(Order))
	trucks, _ := rep.Check(CheckListTrucks)
	assert.True(t, trucks.Skipped)
}

func TestRunRecordsMetrics(t *testing.T) {
	mock, c := newBackend(t)
	mock.Fail(http.MethodGet, client.PathTrucks, http.StatusBadGateway)
	m := metrics.New()

	run(t, c, m)

	gathered, err := m.Registry().Gather()
	require.NoError(t, err)
	var sawFail bool
	for _, mf := range gathered {
		if mf.GetName() != "ecosort_smoke_checks_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["check"] == CheckListTrucks && labels["outcome"] == metrics.OutcomeFail {
				sawFail = metric.GetCounter().GetValue() == 1
			}
		}
	}
	assert.True(t, sawFail, "list_trucks failure not counted")
	n, err := testutil.GatherAndCount(m.Registry(), "ecosort_smoke_last_run_passed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSleepCtxHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepCtx(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, sleepCtx(context.Background(), 0))
}
