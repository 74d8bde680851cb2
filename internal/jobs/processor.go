package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/growth.report/internal/chat"
	"github.com/banshee-data/growth.report/internal/decision"
	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/httputil"
)

// DefaultCallbackTimeout bounds the callback POST.
const DefaultCallbackTimeout = 10 * time.Second

// Processor answers one utterance: it loads the user's session, asks the
// decider what to do, applies it and posts the reply to the callback URL.
type Processor struct {
	Store            growth.SessionStore
	Decider          decision.Decider
	Tracker          *growth.Tracker
	Reporter         *Reporter
	Client           httputil.HTTPClient
	CallbackTimeout  time.Duration
	MinReportEntries int

	locks keyedMutex
}

// NewProcessor returns a processor with the default report threshold and
// callback timeout.
func NewProcessor(store growth.SessionStore, decider decision.Decider, tracker *growth.Tracker, reporter *Reporter, client httputil.HTTPClient) *Processor {
	return &Processor{
		Store:            store,
		Decider:          decider,
		Tracker:          tracker,
		Reporter:         reporter,
		Client:           client,
		CallbackTimeout:  DefaultCallbackTimeout,
		MinReportEntries: decision.MinReportEntries,
	}
}

// Handle is a Handler. Errors are returned only when the session store
// fails; everything else is answered to the user. A failed callback is
// logged but not returned, since retrying would apply the utterance twice.
func (p *Processor) Handle(ctx context.Context, j Job) error {
	resp, err := p.Respond(ctx, j.UserID, j.Utterance)
	if err != nil {
		resp = chat.TextResponse(chat.MsgApology)
	}
	if j.CallbackURL == "" {
		logf("job %s for %s has no callback url; reply dropped", j.ID, j.UserID)
		return err
	}
	if cbErr := p.deliver(ctx, j.CallbackURL, resp); cbErr != nil {
		logf("callback for job %s failed: %v", j.ID, cbErr)
	}
	return err
}

// Respond computes the reply to utterance and updates the stored session.
// Calls for the same user are serialised.
func (p *Processor) Respond(ctx context.Context, userID, utterance string) (chat.Response, error) {
	unlock := p.locks.Lock(userID)
	defer unlock()

	s, err := p.Store.Get(ctx, userID)
	if err != nil {
		return chat.Response{}, fmt.Errorf("load session %s: %w", userID, err)
	}

	d, err := p.Decider.Decide(ctx, s, utterance)
	if err != nil {
		logf("decision for %s failed: %v", userID, err)
		return chat.TextResponse(chat.MsgApology), nil
	}

	s.AssignSex(d.Data.SexValue())

	switch d.Action {
	case decision.ActionAddData:
		m, ok := d.Data.Measurement()
		if !ok {
			break
		}
		if _, err := p.Tracker.Add(s, m); err != nil {
			if errors.Is(err, growth.ErrInvalidMeasurement) || errors.Is(err, growth.ErrNoMeasurement) {
				return chat.TextResponse(chat.MsgInvalid), nil
			}
			return chat.Response{}, err
		}
		return p.save(ctx, userID, s, chat.TextResponse(chat.AddedMessage(s.Len())))

	case decision.ActionGenerateReport:
		if s.Len() < p.ReportThreshold() {
			return p.save(ctx, userID, s, chat.TextResponse(chat.MsgNeedMoreData))
		}
		report, err := p.Reporter.Report(ctx, userID, s)
		if err != nil {
			logf("report for %s failed: %v", userID, err)
			return chat.TextResponse(chat.MsgApology), nil
		}
		if err := p.Store.Delete(ctx, userID); err != nil {
			return chat.Response{}, fmt.Errorf("reset session %s: %w", userID, err)
		}
		return chat.ImageResponse(report.ImageURL, report.Summary), nil

	case decision.ActionReset:
		if err := p.Store.Delete(ctx, userID); err != nil {
			return chat.Response{}, fmt.Errorf("reset session %s: %w", userID, err)
		}
		return chat.TextResponse(chat.MsgReset), nil
	}

	return p.save(ctx, userID, s, chat.TextResponse(chat.AskMessage(s.Sex.Valid())))
}

func (p *Processor) save(ctx context.Context, userID string, s *growth.Session, resp chat.Response) (chat.Response, error) {
	if err := p.Store.Put(ctx, userID, s); err != nil {
		return chat.Response{}, fmt.Errorf("save session %s: %w", userID, err)
	}
	return resp, nil
}

// ReportThreshold is the history length at which a report is produced.
func (p *Processor) ReportThreshold() int {
	if p.MinReportEntries < 1 {
		return decision.MinReportEntries
	}
	return p.MinReportEntries
}

func (p *Processor) deliver(ctx context.Context, url string, resp chat.Response) error {
	timeout := p.CallbackTimeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return httputil.PostJSON(ctx, p.Client, url, resp, nil)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
