// Package verification runs the identity-document check: select an image,
// classify it, report verified or failed.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

var (
	ErrUnsupportedFileType  = errors.New("please upload an image file")
	ErrVerificationRejected = errors.New("unable to verify ID")
	ErrNoArtifact           = errors.New("no document selected")
	ErrVerificationInFlight = errors.New("verification already in progress")
	ErrAlreadyClassified    = errors.New("document already classified, upload a different ID")
)

// State is the machine's position.
type State int

const (
	StateIdle State = iota
	StateVerifying
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileInput is one user-selected file.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Result is the outcome of Verify.
type Result struct {
	State   State                    `json:"-"`
	Details *entity.ExtractedDetails `json:"details,omitempty"`
	Reason  string                   `json:"reason,omitempty"`
}

// Status is a render-ready snapshot of the machine.
type Status struct {
	State    State                    `json:"-"`
	Name     string                   `json:"state"`
	Artifact *entity.Artifact         `json:"artifact,omitempty"`
	Details  *entity.ExtractedDetails `json:"details,omitempty"`
	Reason   string                   `json:"reason,omitempty"`
}

// Machine is the verification state machine. One instance serves one user
// flow; operations are not reentrant.
type Machine struct {
	classifier Classifier
	previews   PreviewStore
	logger     *logrus.Logger
	now        func() time.Time

	mu       sync.Mutex
	state    State
	artifact *entity.Artifact
	details  *entity.ExtractedDetails
	reason   string
}

func NewMachine(classifier Classifier, previews PreviewStore, logger *logrus.Logger) *Machine {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if previews == nil {
		previews = NewMemoryPreviewStore()
	}
	return &Machine{classifier: classifier, previews: previews, logger: logger, now: time.Now}
}

// Select replaces the current artifact with f. Non-image files are refused
// without touching the current artifact. The old preview is released before
// the new one is created.
func (m *Machine) Select(ctx context.Context, f FileInput) error {
	if !entity.IsImageType(f.ContentType) {
		return ErrUnsupportedFileType
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateVerifying {
		return ErrVerificationInFlight
	}
	m.dropLocked(ctx)

	a := entity.Artifact{
		ID:          uuid.NewString(),
		FileName:    f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		SelectedAt:  m.now().UTC(),
	}
	ref, err := m.previews.Create(ctx, a, f.Content)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	a.Preview = ref
	m.artifact = &a
	m.logger.WithFields(logrus.Fields{"artifact_id": a.ID, "size": a.Size}).Debug("artifact selected")
	return nil
}

// Verify classifies the selected artifact. A rejection is reported both in
// the Result and as ErrVerificationRejected.
func (m *Machine) Verify(ctx context.Context) (Result, error) {
	m.mu.Lock()
	switch {
	case m.state == StateVerifying:
		m.mu.Unlock()
		return Result{State: StateVerifying}, ErrVerificationInFlight
	case m.state != StateIdle:
		m.mu.Unlock()
		return Result{State: m.state}, ErrAlreadyClassified
	case m.artifact == nil:
		m.mu.Unlock()
		return Result{State: StateIdle}, ErrNoArtifact
	}
	m.state = StateVerifying
	a := *m.artifact
	m.mu.Unlock()

	d, err := m.classifier.Classify(ctx, a)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateIdle
		m.logger.WithError(err).WithField("artifact_id", a.ID).Warn("classification failed")
		return Result{State: StateIdle}, fmt.Errorf("classify document: %w", err)
	}
	if d.Verified {
		details := d.Details
		m.state, m.details, m.reason = StateVerified, &details, ""
		m.logger.WithField("artifact_id", a.ID).Info("document verified")
		return Result{State: StateVerified, Details: &details}, nil
	}
	reason := d.Reason
	if reason == "" {
		reason = RejectedReason
	}
	m.state, m.details, m.reason = StateFailed, nil, reason
	m.logger.WithField("artifact_id", a.ID).Info("document rejected")
	return Result{State: StateFailed, Reason: reason}, ErrVerificationRejected
}

// Remove discards the artifact and its preview and returns to idle.
func (m *Machine) Remove(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateVerifying {
		return ErrVerificationInFlight
	}
	m.dropLocked(ctx)
	return nil
}

// Reset is "upload a different ID": the same transition as Remove.
func (m *Machine) Reset(ctx context.Context) error { return m.Remove(ctx) }

func (m *Machine) dropLocked(ctx context.Context) {
	if m.artifact != nil && m.artifact.Preview != "" {
		if err := m.previews.Release(ctx, m.artifact.Preview); err != nil {
			m.logger.WithError(err).WithField("preview", string(m.artifact.Preview)).Warn("release preview failed")
		}
	}
	m.artifact = nil
	m.details = nil
	m.reason = ""
	m.state = StateIdle
}

func (m *Machine) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{State: m.state, Name: m.state.String(), Reason: m.reason}
	if m.artifact != nil {
		a := *m.artifact
		st.Artifact = &a
	}
	if m.details != nil {
		d := *m.details
		st.Details = &d
	}
	return st
}
