package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-transcription-service/internal/config"
	"meeting-transcription-service/internal/events"
	"meeting-transcription-service/internal/export"
	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability/logging"
	"meeting-transcription-service/internal/service/aggregator"
	"meeting-transcription-service/internal/service/recognizer"
	"meeting-transcription-service/internal/service/recognizer/google"
	"meeting-transcription-service/internal/service/recognizer/mock"
)

// Errors for session registry misuse.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// AdapterFactory builds a recognizer adapter for a new session.
type AdapterFactory func(ctx context.Context) (recognizer.Adapter, error)

// Manager owns all capture sessions of the process, running and stopped.
// Stopped sessions stay in the registry so their transcripts remain
// retrievable until the process exits.
type Manager struct {
	mu         sync.Mutex
	cfg        *config.Configuration
	publisher  *events.Publisher
	exporter   *export.Writer
	newAdapter AdapterFactory
	handlers   map[string]*Handler
	logger     zerolog.Logger
}

// NewManager creates a manager whose sessions use the configured recognizer
// provider. The publisher may be nil.
func NewManager(cfg *config.Configuration, publisher *events.Publisher) *Manager {
	m := &Manager{
		cfg:        cfg,
		publisher:  publisher,
		newAdapter: defaultAdapterFactory(cfg),
		handlers:   make(map[string]*Handler),
		logger:     logging.WithComponent("capture-manager"),
	}
	if cfg.Export.Enabled {
		m.exporter = export.NewWriter(cfg.Export.Dir)
	}
	return m
}

// SetAdapterFactory overrides how recognizer adapters are built. Must be
// called before any session starts.
func (m *Manager) SetAdapterFactory(f AdapterFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newAdapter = f
}

// defaultAdapterFactory maps the configured provider name to an adapter
// constructor. Unknown providers fall back to the mock recognizer so the
// service still comes up in demo environments.
func defaultAdapterFactory(cfg *config.Configuration) AdapterFactory {
	switch cfg.Recognizer.Provider {
	case "google":
		return func(ctx context.Context) (recognizer.Adapter, error) {
			gcfg := google.DefaultConfig()
			gcfg.SampleRateHz = cfg.Recognizer.SampleRateHz
			gcfg.InterimResults = cfg.Recognizer.InterimResults
			if cfg.Recognizer.LanguageMode == "auto" {
				gcfg.AlternativeLanguages = cfg.Recognizer.CandidateLanguages
			} else if cfg.Recognizer.LanguageMode != "" {
				gcfg.LanguageCode = cfg.Recognizer.LanguageMode
			}
			return google.New(ctx, gcfg)
		}
	default:
		return func(ctx context.Context) (recognizer.Adapter, error) {
			return mock.New(), nil
		}
	}
}

// StartSession creates and starts a new capture session. If sessionID is
// empty a unique identifier is generated.
func (m *Manager) StartSession(ctx context.Context, sessionID string) (models.Session, error) {
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()
	}

	m.mu.Lock()
	if _, ok := m.handlers[sessionID]; ok {
		m.mu.Unlock()
		return models.Session{}, ErrSessionExists
	}

	adapter, err := m.newAdapter(ctx)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Str("provider", m.cfg.Recognizer.Provider).Msg("Failed to create recognizer adapter")
		return models.Session{}, err
	}

	h := NewHandler(adapter, m.publisher, Options{
		GapThreshold:      m.cfg.Aggregator.GapThreshold,
		DefaultConfidence: m.cfg.Aggregator.DefaultConfidence,
		LanguageSetting:   m.cfg.Recognizer.LanguageMode,
		Source:            m.cfg.Recognizer.Provider,
		Provider:          m.cfg.Recognizer.Provider,
	})
	m.handlers[sessionID] = h
	m.mu.Unlock()

	sess, err := h.Start(ctx, sessionID)
	if err != nil {
		// The recognizer never came up; drop the registration so the ID can
		// be reused.
		if _, stopErr := h.Stop(); stopErr != nil {
			m.logger.Warn().Err(stopErr).Str("sessionId", sessionID).Msg("Cleanup stop failed")
		}
		m.mu.Lock()
		delete(m.handlers, sessionID)
		m.mu.Unlock()
		return models.Session{}, err
	}

	m.logger.Info().Str("sessionId", sessionID).Msg("Capture session started")
	return sess, nil
}

// StopSession finalizes a session and, when export is enabled, writes its
// transcript files. The session stays retrievable afterwards.
func (m *Manager) StopSession(sessionID string) (models.SessionSummary, error) {
	h, err := m.handler(sessionID)
	if err != nil {
		return models.SessionSummary{}, err
	}

	summary, err := h.Stop()
	if err != nil {
		return models.SessionSummary{}, err
	}

	if m.exporter != nil {
		if _, _, err := m.exporter.Write(h.Session()); err != nil {
			// Export failure doesn't undo the stop; the transcript is still
			// available over the API.
			m.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Transcript export failed")
		}
	}

	m.logger.Info().Str("sessionId", sessionID).Int("totalSegments", summary.TotalSegments).Msg("Capture session stopped")
	return summary, nil
}

// GetSession returns a snapshot of the session and its lifecycle state.
func (m *Manager) GetSession(sessionID string) (models.Session, aggregator.State, error) {
	h, err := m.handler(sessionID)
	if err != nil {
		return models.Session{}, aggregator.StateIdle, err
	}
	return h.Session(), h.State(), nil
}

// SendAudio forwards audio bytes to the session's recognizer.
func (m *Manager) SendAudio(ctx context.Context, sessionID string, audio []byte) error {
	h, err := m.handler(sessionID)
	if err != nil {
		return err
	}
	return h.SendAudio(ctx, audio)
}

// ListSessions returns snapshots of all known sessions, running and stopped.
func (m *Manager) ListSessions() []models.Session {
	m.mu.Lock()
	handlers := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	sessions := make([]models.Session, 0, len(handlers))
	for _, h := range handlers {
		sessions = append(sessions, h.Session())
	}
	return sessions
}

// Close stops all running sessions. Called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	handlers := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		if h.State() != aggregator.StateRunning {
			continue
		}
		if _, err := h.Stop(); err != nil {
			m.logger.Warn().Err(err).Msg("Session stop on shutdown failed")
		}
	}
}

func (m *Manager) handler(sessionID string) (*Handler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handlers[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}
