package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"video-summary/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second run while one
// is in flight. Starts are rejected, never cancel-and-replace.
var ErrRunAlreadyActive = errors.New("run already active")

// ErrNoActiveRun is returned when cancel is requested for idle state.
var ErrNoActiveRun = errors.New("no active run")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			Status: domain.RunStatusIdle,
		},
	}
}

// Start registers a new run and moves it to its first stage: fetching
// captions when a video identifier is present, else transcribing.
func (m *Manager) Start(run domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrRunAlreadyActive
	}

	if strings.TrimSpace(run.VideoID) != "" {
		run.Status = domain.RunStatusFetchingCaptions
	} else {
		run.Status = domain.RunStatusTranscribing
	}
	m.current = run
	return nil
}

// Transition validates and applies a state change for the current run.
func (m *Manager) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.RunStatusIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// SetMessage records the latest human-readable status line.
func (m *Manager) SetMessage(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.StatusMessage = message
}

// SetOutcome records transcript, summary, and caption provenance.
func (m *Manager) SetOutcome(transcript, summary string, usedCaptions bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Transcript = transcript
	m.current.Summary = summary
	m.current.UsedCaptions = usedCaptions
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoActiveRun
	}
	m.current.Status = domain.RunStatusCancelled
	return nil
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusFetchingCaptions, domain.RunStatusTranscribing, domain.RunStatusSummarizing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges. The
// transcribing and summarizing stages are conditional: caption hits
// jump straight to summarizing or done, and runs without credentials
// finish without a summarizing stage.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusFetchingCaptions || to == domain.RunStatusTranscribing
	case domain.RunStatusFetchingCaptions:
		switch to {
		case domain.RunStatusTranscribing, domain.RunStatusSummarizing,
			domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
			return true
		}
		return false
	case domain.RunStatusTranscribing:
		switch to {
		case domain.RunStatusSummarizing, domain.RunStatusDone,
			domain.RunStatusFailed, domain.RunStatusCancelled:
			return true
		}
		return false
	case domain.RunStatusSummarizing:
		switch to {
		case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
			return true
		}
		return false
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		switch to {
		case domain.RunStatusFetchingCaptions, domain.RunStatusTranscribing, domain.RunStatusIdle:
			return true
		}
		return false
	default:
		return false
	}
}
