// Package journal keeps a crash-safe, human-diffable local mirror of every
// decision round alongside the authoritative DecisionRecord persisted by
// the round recorder — the teacher's own dual-write pattern of writing a
// JSON file per cycle in addition to its primary store.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradearena/pkg/domain"
)

// roundEntry is the on-disk shape of one mirrored decision round.
type roundEntry struct {
	Timestamp      time.Time                    `json:"timestamp"`
	Sequence       int                          `json:"sequence"`
	ParticipantID  string                       `json:"participant_id"`
	CompetitionID  string                       `json:"competition_id"`
	PromptText     string                       `json:"prompt_text,omitempty"`
	PromptTokens   *int                         `json:"prompt_tokens,omitempty"`
	ResponseTokens *int                         `json:"response_tokens,omitempty"`
	RawResponse    string                       `json:"raw_response,omitempty"`
	ParsedDecision string                       `json:"parsed_decision,omitempty"`
	Reasoning      string                       `json:"reasoning,omitempty"`
	OrderResults   []domain.OrderExecutionResult `json:"order_results,omitempty"`
	Latency        time.Duration                `json:"latency"`
	Status         domain.InvocationStatus      `json:"status"`
	ErrorMessage   string                       `json:"error_message,omitempty"`
}

// Writer mirrors DecisionRecords to a directory as JSON files, one per
// round, alongside the authoritative database row.
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteRound mirrors one DecisionRecord to a timestamped JSON file and
// returns the path written. Safe to call even if the authoritative
// persistence write for the same round has failed or not yet happened —
// the two are independent, best-effort writes.
func (w *Writer) WriteRound(rec *domain.DecisionRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	occurredAt := rec.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = w.nowFn()
	}
	w.seq++
	entry := roundEntry{
		Timestamp:      occurredAt,
		Sequence:       w.seq,
		ParticipantID:  rec.ParticipantID,
		CompetitionID:  rec.CompetitionID,
		PromptText:     rec.PromptText,
		PromptTokens:   rec.PromptTokens,
		ResponseTokens: rec.ResponseTokens,
		RawResponse:    rec.RawResponse,
		ParsedDecision: rec.ParsedDecision,
		Reasoning:      rec.Reasoning,
		OrderResults:   rec.OrderResults,
		Latency:        rec.Latency,
		Status:         rec.Status,
		ErrorMessage:   rec.ErrorMessage,
	}

	name := fmt.Sprintf("round_%s_%s_%05d.json", occurredAt.UTC().Format("20060102_150405"), rec.ParticipantID, w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Record implements orchestrator.DecisionRecorder so a Writer can be
// composed alongside the authoritative persistence-backed recorder.
func (w *Writer) Record(rec *domain.DecisionRecord) error {
	_, err := w.WriteRound(rec)
	return err
}
