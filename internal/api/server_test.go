package api

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/growth.report/internal/chat"
	"github.com/banshee-data/growth.report/internal/decision"
	"github.com/banshee-data/growth.report/internal/fsutil"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/httputil"
	"github.com/banshee-data/growth.report/internal/jobs"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/testutil"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

type testServer struct {
	mux    *http.ServeMux
	queue  *jobs.MemoryQueue
	store  *growth.MemoryStore
	charts *jobs.ChartStore
	client *httputil.MockHTTPClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	table := reference.Default()
	store := growth.NewMemoryStore(clock)
	charts := jobs.NewChartStore(fsutil.NewMemoryFileSystem(), "charts", clock)
	client := httputil.NewMockHTTPClient()
	reporter := jobs.NewReporter(growth.NewForecaster(table), charts, "http://bot.test")
	proc := jobs.NewProcessor(store, decision.RuleDecider{}, growth.NewTracker(table), reporter, client)

	q := jobs.NewMemoryQueue(8, 1)
	t.Cleanup(func() { q.Close() })

	mux, err := NewServer(q, proc).ServeMux()
	require.NoError(t, err)
	return &testServer{mux: mux, queue: q, store: store, charts: charts, client: client}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seed(t *testing.T, user string, entries ...growth.Entry) {
	t.Helper()
	s := &growth.Session{Sex: reference.Male, History: entries}
	require.NoError(t, ts.store.Put(context.Background(), user, s))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "is running!")

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestSkill_QueuesWhenCallbackGiven(t *testing.T) {
	ts := newTestServer(t)
	body := testutil.SkillRequestJSON("u1", "아들 12개월 75cm", "http://callback.test/hook")
	rec := ts.do(testutil.JSONRequest(t, http.MethodPost, "/skill", body))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp chat.Response
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, chat.CallbackAck(), resp)
	assert.Equal(t, 1, ts.queue.Len())

	s, err := ts.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len(), "the turn is applied by the worker, not the webhook")
}

func TestSkill_AnswersInlineWithoutCallback(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(testutil.JSONRequest(t, http.MethodPost, "/skill", testutil.SkillRequestJSON("u1", "딸 6개월 7.1kg", "")))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp chat.Response
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, chat.MsgNeedOneMore, resp.Text())
	assert.Equal(t, 0, ts.queue.Len())

	s, err := ts.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, reference.Female, s.Sex)
	assert.Equal(t, 1, s.Len())
}

func TestSkill_RejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(testutil.JSONRequest(t, http.MethodPost, "/skill", "{not json"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = ts.do(testutil.JSONRequest(t, http.MethodPost, "/skill", testutil.SkillRequestJSON("", "hi", "")))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/skill", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestSkill_QueueClosed(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.queue.Close())

	rec := ts.do(testutil.JSONRequest(t, http.MethodPost, "/skill", testutil.SkillRequestJSON("u1", "hi", "http://callback.test/hook")))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp chat.Response
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, chat.MsgRequestFailed, resp.Text())
}

func TestProcessJob(t *testing.T) {
	ts := newTestServer(t)
	job := jobs.Job{ID: uuid.New(), UserID: "u1", Utterance: "아들 12개월 75cm", CallbackURL: "http://callback.test/hook"}

	rec := ts.do(testutil.JSONRequest(t, http.MethodPost, "/api/process-job", job))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var out map[string]string
	testutil.DecodeJSON(t, rec, &out)
	assert.Equal(t, map[string]string{"status": "ok", "id": job.ID.String()}, out)

	require.Equal(t, 1, ts.client.RequestCount())
	assert.Equal(t, "http://callback.test/hook", ts.client.GetRequest(0).URL.String())
	assert.Contains(t, string(ts.client.GetBody(0)), chat.MsgNeedOneMore)

	rec = ts.do(testutil.JSONRequest(t, http.MethodPost, "/api/process-job", jobs.Job{Utterance: "x"}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestStatic(t *testing.T) {
	ts := newTestServer(t)
	png := []byte("\x89PNG\r\n\x1a\nfake")
	name, err := ts.charts.Save("u1", ".png", png)
	require.NoError(t, err)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/static/"+name, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/static/notes.txt", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/static/missing_1.png", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestChartPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/charts/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	ts.seed(t, "u1",
		growth.Entry{AgeMonth: 12, HeightCM: growth.Float(75.7), WeightKG: growth.Float(9.6)},
		growth.Entry{AgeMonth: 24, HeightCM: growth.Float(87.1), WeightKG: growth.Float(12.2)},
	)
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/charts/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>growth u1</title>")
	assert.Contains(t, rec.Body.String(), "12-month forecast")
}

func TestChartPage_NoForecastBelowThreshold(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "u1", growth.Entry{AgeMonth: 12, HeightCM: growth.Float(75.7)})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/charts/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.NotContains(t, rec.Body.String(), "12-month forecast")
}

func TestPercentile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/percentile?sex=male&measure=height&age_month=24&value=87.1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var res PercentileResult
	testutil.DecodeJSON(t, rec, &res)
	assert.Equal(t, 50.0, res.Percentile)
	require.NotNil(t, res.ZScore)
	assert.InDelta(t, 0, *res.ZScore, 1e-9)
	assert.Equal(t, reference.LMS{L: 1, M: 87.1, S: 0.04}, res.LMS)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/percentile?sex=Male&measure=height&age_month=24&percentile=50", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	res = PercentileResult{}
	testutil.DecodeJSON(t, rec, &res)
	assert.InDelta(t, 87.1, res.Value, 1e-9)
	assert.Nil(t, res.ZScore)
}

func TestPercentile_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		query string
		want  int
	}{
		{"sex=cat&measure=height&age_month=24&value=80", http.StatusBadRequest},
		{"sex=male&measure=shoe&age_month=24&value=80", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=-1&value=80", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=24", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=24&value=-3", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=24&percentile=100", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=24&value=abc", http.StatusBadRequest},
		{"sex=male&measure=height&age_month=999&value=80", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/percentile?"+tt.query, nil))
			testutil.AssertStatusCode(t, rec.Code, tt.want)
		})
	}
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "u1", growth.Entry{AgeMonth: 6, WeightKG: growth.Float(7.9)})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/sessions/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var s growth.Session
	testutil.DecodeJSON(t, rec, &s)
	assert.Equal(t, reference.Male, s.Sex)
	require.Len(t, s.History, 1)
	assert.Equal(t, 6, s.History[0].AgeMonth)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/sessions/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)

	got, err := ts.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())

	rec = ts.do(httptest.NewRequest(http.MethodPut, "/api/sessions/u1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestAdminRoutes(t *testing.T) {
	q := jobs.NewMemoryQueue(1, 1)
	defer q.Close()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	table := reference.Default()
	reporter := jobs.NewReporter(growth.NewForecaster(table), jobs.NewChartStore(fsutil.NewMemoryFileSystem(), "c", clock), "")
	srv := NewServer(q, jobs.NewProcessor(growth.NewMemoryStore(clock), decision.RuleDecider{}, growth.NewTracker(table), reporter, httputil.NewMockHTTPClient()))

	var mounted bool
	srv.AdminRoutes = func(mux *http.ServeMux) error {
		mounted = true
		mux.HandleFunc("/debug/ping", func(w http.ResponseWriter, r *http.Request) {})
		return nil
	}
	_, err := srv.ServeMux()
	require.NoError(t, err)
	assert.True(t, mounted)

	srv.AdminRoutes = func(*http.ServeMux) error { return assert.AnError }
	_, err = srv.ServeMux()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, "100", statusCodeColor(100))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/percentile?sex=male", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	line := buf.String()
	assert.Contains(t, line, "418")
	assert.True(t, strings.Contains(line, "GET "+colorCyan+"/api/percentile?sex=male"), line)
}
