// Package triage writes a short model-generated note for each failed
// scenario, attached to its report entry. Entirely optional; a run without
// an API key never touches the network.
package triage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/gherkit/gherkit/internal/config"
	"github.com/gherkit/gherkit/internal/report"
)

// Triager summarizes failed scenarios through the Gemini API.
type Triager struct {
	cfg    config.TriageConfig
	client *genai.Client
	logger *zap.Logger
}

// New connects the Gemini client. Returns an error when triage is enabled
// without an API key.
func New(ctx context.Context, cfg config.TriageConfig, logger *zap.Logger) (*Triager, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("triage enabled but no API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Triager{cfg: cfg, client: client, logger: logger.Named("triage")}, nil
}

// Annotate asks the model for a note on every failed scenario and attaches
// it to the collector entry. Triage failures are logged and skipped; a
// missing note never fails the run.
func (t *Triager) Annotate(ctx context.Context, run *report.Run, collector *report.Collector) {
	for _, s := range run.Scenarios {
		if s.Status != report.StatusFailed {
			continue
		}
		note, err := t.note(ctx, s)
		if err != nil {
			t.logger.Warn("Failed to triage scenario.",
				zap.String("scenario", s.Name), zap.Error(err))
			continue
		}
		collector.AttachNote(s.ID, note)
	}
}

func (t *Triager) note(ctx context.Context, s report.Scenario) (string, error) {
	noteCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	resp, err := t.client.Models.GenerateContent(noteCtx, t.cfg.Model, genai.Text(Prompt(s)), nil)
	if err != nil {
		return "", fmt.Errorf("generate triage note: %w", err)
	}
	note := strings.TrimSpace(resp.Text())
	if note == "" {
		return "", fmt.Errorf("model returned an empty note")
	}
	return note, nil
}

// Prompt renders the triage request for one failed scenario.
func Prompt(s report.Scenario) string {
	var b strings.Builder
	b.WriteString("You are triaging a failed browser test scenario.\n")
	b.WriteString("Summarize the most likely cause in at most two sentences. ")
	b.WriteString("Do not restate the error verbatim.\n\n")
	fmt.Fprintf(&b, "Scenario: %s\n", s.Name)
	if s.Feature != "" {
		fmt.Fprintf(&b, "Feature: %s\n", s.Feature)
	}
	fmt.Fprintf(&b, "Error: %s\n", s.Error)
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration)
	return b.String()
}
