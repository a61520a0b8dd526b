package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	DiffHash    string    `json:"diff_hash"`
	TableHash   string    `json:"table_hash"`
	TableSource string    `json:"table_source"`
}

// AttemptRecord mirrors one engine attempt for the decision trail.
type AttemptRecord struct {
	Route          int      `json:"route"`
	Backend        string   `json:"backend"`
	Attempt        int      `json:"attempt"`
	Conditions     []string `json:"conditions,omitempty"`
	Outcome        string   `json:"outcome"`
	Error          string   `json:"error,omitempty"`
	DurationMillis int64    `json:"duration_ms"`
}

// PassRecord captures one analysis pass.
type PassRecord struct {
	Pass             int             `json:"pass"`
	Focus            string          `json:"focus"`
	InputTokenLimit  int             `json:"input_token_limit"`
	OutputTokenLimit int             `json:"output_token_limit"`
	InputTokensUsed  int             `json:"input_tokens_used,omitempty"`
	OutputTokensUsed int             `json:"output_tokens_used,omitempty"`
	Verdict          string          `json:"verdict,omitempty"`
	Backend          string          `json:"backend,omitempty"`
	Attempts         []AttemptRecord `json:"attempts,omitempty"`
	DurationMillis   int64           `json:"duration_ms"`
}

// Writer persists one run's decision trail under a run directory.
type Writer struct {
	runDir string
}

// NewWriter creates a writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}
	return &Writer{runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun persists run-level metadata.
func (w *Writer) WriteRun(record RunRecord) error {
	return w.writeJSON("run.json", record)
}

// WritePass persists one pass record.
func (w *Writer) WritePass(record PassRecord) error {
	return w.writeJSON(fmt.Sprintf("pass-%d.json", record.Pass), record)
}

func (w *Writer) writeJSON(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.runDir, name), data, 0644)
}

// HashString returns a short content hash for audit records.
func HashString(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])[:16]
}

// NewRunID builds a timestamped run identifier.
func NewRunID() string {
	now := time.Now().UTC()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", now.UnixNano())))
	return fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), hex.EncodeToString(sum[:4]))
}
