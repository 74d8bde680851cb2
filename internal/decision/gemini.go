package decision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/banshee-data/growth.report/internal/growth"
)

// Defaults for the Gemini API.
const (
	DefaultModel      = "gemini-1.5-flash"
	DefaultEndpoint   = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion = "v1beta"
)

// ErrNoAPIKey is returned by NewGeminiDecider without a key.
var ErrNoAPIKey = errors.New("decision: missing API key")

// GeminiDecider asks a Gemini model for a JSON decision.
type GeminiDecider struct {
	Model    string
	Endpoint string
	// MinReportEntries is passed to Prompt; it should match the processor's
	// report threshold.
	MinReportEntries int

	client *genai.Client
}

// NewGeminiDecider returns a decider sending requests through httpClient.
// Empty model and endpoint fall back to the defaults.
func NewGeminiDecider(ctx context.Context, httpClient *http.Client, apiKey, model, endpoint string) (*GeminiDecider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    endpoint,
			APIVersion: DefaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiDecider{
		Model:            model,
		Endpoint:         endpoint,
		MinReportEntries: MinReportEntries,
		client:           client,
	}, nil
}

// Decide implements Decider.
func (g *GeminiDecider) Decide(ctx context.Context, s *growth.Session, utterance string) (Decision, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.Model,
		genai.Text(Prompt(s, utterance, g.MinReportEntries)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Decision{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Decision{}, fmt.Errorf("%w: empty model response", ErrMalformedDecision)
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			text.WriteString(p.Text)
		}
	}
	if text.Len() == 0 {
		return Decision{}, fmt.Errorf("%w: empty model response", ErrMalformedDecision)
	}
	return Parse([]byte(text.String()))
}
