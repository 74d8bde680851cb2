// Package jobs moves chat turns from the webhook to the workers that answer
// them. A Job is published on a Queue, consumed by a worker pool and handled
// by a Processor, which replies through the request's callback URL.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/growth.report/internal/chat"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("jobs: queue closed")

var errPanic = errors.New("jobs: handler panicked")

// Job is one user utterance awaiting an answer.
type Job struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Utterance   string    `json:"utterance"`
	CallbackURL string    `json:"callback_url,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewJob builds a job from a skill request.
func NewJob(req chat.SkillRequest) (Job, error) {
	if err := req.Validate(); err != nil {
		return Job{}, err
	}
	return Job{
		ID:          uuid.New(),
		UserID:      req.UserID(),
		Utterance:   req.UserRequest.Utterance,
		CallbackURL: req.UserRequest.CallbackURL,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Encode returns the wire form of j.
func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses the wire form produced by Encode.
func DecodeJob(b []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if j.UserID == "" {
		return Job{}, fmt.Errorf("decode job: %w", chat.ErrMalformedRequest)
	}
	return j, nil
}

// Handler processes a single job.
type Handler func(ctx context.Context, j Job) error

// Queue is a job transport. Consume blocks, dispatching jobs to h, until ctx
// is cancelled or the queue is closed.
type Queue interface {
	Publish(ctx context.Context, j Job) error
	Consume(ctx context.Context, h Handler) error
	Close() error
}
