// Package assistant is the boundary to the remote question-answering
// collaborator. It projects the book into flat per-appointment records,
// composes a prompt and posts it to a text-completion endpoint. Failures are
// returned as errors and never touch application state.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"turnero/internal/config"
	appLog "turnero/internal/log"
	"turnero/internal/model"
)

// ErrNotConfigured is returned when no completion endpoint is set.
var ErrNotConfigured = errors.New("assistant: no endpoint configured")

// Record is the flattened per-appointment view the assistant reasons over.
type Record struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Patient   string `json:"patient"`
	Session   string `json:"session,omitempty"`
	Treatment string `json:"treatment,omitempty"`
	Diagnosis string `json:"diagnosis,omitempty"`
}

// Flatten projects the snapshot into chronologically sorted records.
func Flatten(st model.AppState) []Record {
	out := make([]Record, 0, len(st.Appointments))
	for _, a := range st.Appointments {
		r := Record{
			Date:    a.Date,
			Time:    a.Time,
			Patient: st.PatientName(a.PatientID),
			Session: a.Session,
		}
		if p, ok := st.PatientByID(a.PatientID); ok {
			r.Treatment = p.Treatment
			r.Diagnosis = p.Diagnosis
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Patient < out[j].Patient
	})
	return out
}

// Client talks to the completion endpoint.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	httpc    *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AssistantConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type completionRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Completion string `json:"completion"`
	Error      string `json:"error,omitempty"`
}

// Ask answers a natural-language question about the book. The response is
// opaque text; nothing is parsed back into application state.
func (c *Client) Ask(ctx context.Context, st model.AppState, question string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("assistant: empty question")
	}

	body, err := json.Marshal(completionRequest{
		Model:  c.model,
		Prompt: buildPrompt(Flatten(st), question),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	appLog.Info("assistant question", "records", len(st.Appointments))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("assistant: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant: endpoint returned %s", resp.Status)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("assistant: invalid response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("assistant: %s", out.Error)
	}
	return out.Completion, nil
}

// buildPrompt lays the records out as one line per appointment followed by
// the question. Plain text keeps the collaborator model-agnostic.
func buildPrompt(records []Record, question string) string {
	var b strings.Builder
	b.WriteString("You are the scheduling assistant of a medical practice. ")
	b.WriteString("The current appointment book follows, one appointment per line:\n\n")
	for _, r := range records {
		b.WriteString(r.Date)
		b.WriteString(" ")
		b.WriteString(r.Time)
		b.WriteString(" | ")
		b.WriteString(r.Patient)
		if r.Session != "" {
			b.WriteString(" | session ")
			b.WriteString(r.Session)
		}
		if r.Treatment != "" {
			b.WriteString(" | ")
			b.WriteString(r.Treatment)
		}
		if r.Diagnosis != "" {
			b.WriteString(" | ")
			b.WriteString(r.Diagnosis)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
