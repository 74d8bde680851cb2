// Package api serves the chat webhook, the chart files and a small JSON API
// over the percentile engine and stored sessions.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/growth.report/internal/chart"
	"github.com/banshee-data/growth.report/internal/chat"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/httputil"
	"github.com/banshee-data/growth.report/internal/jobs"
	"github.com/banshee-data/growth.report/internal/percentile"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/security"
	"github.com/banshee-data/growth.report/internal/version"
)

// Server holds the handlers' dependencies.
type Server struct {
	queue      jobs.Queue
	processor  *jobs.Processor
	store      growth.SessionStore
	table      *reference.Table
	forecaster *growth.Forecaster
	renderer   *chart.Renderer
	charts     *jobs.ChartStore

	// AdminRoutes, when set, mounts debug handlers on the mux.
	AdminRoutes func(mux *http.ServeMux) error
}

// NewServer returns a server publishing chat turns on q and answering them
// with p.
func NewServer(q jobs.Queue, p *jobs.Processor) *Server {
	f := p.Reporter.Forecaster
	return &Server{
		queue:      q,
		processor:  p,
		store:      p.Store,
		table:      f.Table,
		forecaster: f,
		renderer:   p.Reporter.Renderer,
		charts:     p.Reporter.Charts,
	}
}

// ServeMux returns the routes.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleHealth)
	mux.HandleFunc("/skill", s.handleSkill)
	mux.HandleFunc("/api/process-job", s.handleProcessJob)
	mux.HandleFunc("/api/percentile", s.handlePercentile)
	mux.HandleFunc("/api/sessions/{user}", s.handleSession)
	mux.HandleFunc("/charts/{user}", s.handleChartPage)
	mux.HandleFunc("/static/{file}", s.handleStatic)
	if s.AdminRoutes != nil {
		if err := s.AdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "✅ "+version.String()+" is running!\n")
}

// handleSkill accepts a chat turn. With a callback URL the turn is queued
// and acknowledged; without one it is answered inline.
func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req chat.SkillRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	job, err := jobs.NewJob(req)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if job.CallbackURL == "" {
		resp, err := s.processor.Respond(r.Context(), job.UserID, job.Utterance)
		if err != nil {
			log.Printf("inline reply for %s failed: %v", job.UserID, err)
			resp = chat.TextResponse(chat.MsgApology)
		}
		httputil.WriteJSONOK(w, resp)
		return
	}

	if err := s.queue.Publish(r.Context(), job); err != nil {
		log.Printf("failed to enqueue job for %s: %v", job.UserID, err)
		httputil.WriteJSONOK(w, chat.TextResponse(chat.MsgRequestFailed))
		return
	}
	httputil.WriteJSONOK(w, chat.CallbackAck())
}

// handleProcessJob runs a job pushed by an external queue.
func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var job jobs.Job
	if err := httputil.DecodeJSONBody(w, r, &job); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if job.UserID == "" {
		httputil.BadRequest(w, "missing user_id")
		return
	}
	if err := s.processor.Handle(r.Context(), job); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "id": job.ID.String()})
}

// handleStatic serves a stored chart file.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.PathValue("file")
	data, err := s.charts.Read(name)
	switch {
	case errors.Is(err, security.ErrInvalidName):
		httputil.BadRequest(w, "invalid file name")
		return
	case errors.Is(err, fs.ErrNotExist):
		httputil.NotFound(w, "chart not found")
		return
	case err != nil:
		log.Printf("failed to read chart %s: %v", name, err)
		httputil.InternalServerError(w, "failed to read chart")
		return
	}

	switch filepath.Ext(name) {
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleChartPage renders the interactive chart for a user's current
// session. The projection is only drawn once a report would be allowed.
func (s *Server) handleChartPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	user := r.PathValue("user")
	sess, err := s.store.Get(r.Context(), user)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sess.Len() == 0 {
		httputil.NotFound(w, "no measurements recorded")
		return
	}

	in := chart.Input{Sex: sess.Sex, History: sess.History}
	if sess.Len() >= s.processor.ReportThreshold() {
		if fc, ok := s.forecaster.Forecast(sess); ok {
			in.Forecast = &fc
		}
	}

	var buf bytes.Buffer
	if err := s.renderer.HTML(&buf, in, "growth "+user); err != nil {
		if errors.Is(err, chart.ErrNothingToPlot) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// PercentileResult is the /api/percentile response.
type PercentileResult struct {
	Sex        reference.Sex     `json:"sex"`
	Measure    reference.Measure `json:"measure"`
	AgeMonth   int               `json:"age_month"`
	LMS        reference.LMS     `json:"lms"`
	Value      float64           `json:"value"`
	Percentile float64           `json:"percentile"`
	ZScore     *float64          `json:"z_score,omitempty"`
}

// handlePercentile evaluates the engine: value gives a percentile, and
// percentile gives the reference value.
func (s *Server) handlePercentile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()

	sex, ok := reference.ParseSex(q.Get("sex"))
	if !ok || !sex.Valid() {
		httputil.BadRequest(w, "sex must be male or female")
		return
	}
	measure, ok := reference.ParseMeasure(q.Get("measure"))
	if !ok {
		httputil.BadRequest(w, "measure must be height or weight")
		return
	}
	age, err := strconv.Atoi(q.Get("age_month"))
	if err != nil || age < 0 {
		httputil.BadRequest(w, "age_month must be a non-negative integer")
		return
	}
	lms, ok := s.table.Lookup(sex, measure, age)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no reference data for %s %s at %d months", sex, measure, age))
		return
	}

	res := PercentileResult{Sex: sex, Measure: measure, AgeMonth: age, LMS: lms}
	switch {
	case q.Has("value"):
		v, err := strconv.ParseFloat(q.Get("value"), 64)
		if err != nil {
			httputil.BadRequest(w, "value must be a number")
			return
		}
		z, err := percentile.ZScore(v, lms)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		res.Value, res.Percentile, res.ZScore = v, percentile.FromZScore(z), &z

	case q.Has("percentile"):
		p, err := strconv.ParseFloat(q.Get("percentile"), 64)
		if err != nil {
			httputil.BadRequest(w, "percentile must be a number")
			return
		}
		v, err := percentile.ValueAtPercentile(p/100, lms)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		res.Value, res.Percentile = v, p

	default:
		httputil.BadRequest(w, "either value or percentile is required")
		return
	}
	httputil.WriteJSONOK(w, res)
}

// handleSession shows or resets a stored session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	switch r.Method {
	case http.MethodGet:
		sess, err := s.store.Get(r.Context(), user)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sess)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), user); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}
