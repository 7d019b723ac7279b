package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-backend/internal/model"
)

// Authority is the remote contest store boundary for proctoring side
// effects. All calls are best-effort: failures are logged and swallowed,
// and the session's local state stays the enforcement source of truth.
type Authority interface {
	Disqualify(ctx context.Context, contestID uuid.UUID, userID string) error
	LogInfraction(ctx context.Context, contestID uuid.UUID, userID, problemID string, kind model.ViolationKind) error
	LogSnapshot(ctx context.Context, contestID uuid.UUID, userID, problemID, imageURL string) error
}

// SnapshotSource captures one monitoring image and returns its URL.
// For the proctor stream this round-trips to the client's webcam.
type SnapshotSource interface {
	Capture(ctx context.Context) (string, error)
}

// Config holds the policy constants for one session.
type Config struct {
	MaxInfractions   uint
	SnapshotInterval time.Duration
	PasteThreshold   int
}

// State is the session's externally visible state, pushed to the UI on
// every change.
type State struct {
	Active          bool   `json:"active"`
	InfractionCount uint   `json:"infraction_count"`
	WarningText     string `json:"warning_text"`
	Disqualified    bool   `json:"disqualified"`
	MaxInfractions  uint   `json:"max_infractions"`
}

// Session is the proctoring state machine for one participant viewing
// one problem: Inactive → Active → {Active (warned), Disqualified}.
// Disqualified is terminal for the session instance. A new instance is
// created per problem/contest combination.
//
// Enforcement policy is intentionally asymmetric: outside a contest,
// disqualification requires reaching MaxInfractions; inside a contest,
// the first violation of any kind triggers an immediate server-side
// disqualification while the warning text keeps reporting strike
// progress.
type Session struct {
	cfg       Config
	authority Authority
	source    SnapshotSource
	log       zerolog.Logger

	userID    string
	problemID string
	contestID uuid.UUID // uuid.Nil in practice mode

	visibility VisibilityDetector
	fullscreen FullscreenDetector
	paste      PasteInterceptor

	callTimeout time.Duration

	mu              sync.Mutex
	active          bool
	infractionCount uint
	warningText     string
	disqualified    bool
	notified        bool
	unsubs          []Unsubscribe
	cancelSnapshots context.CancelFunc
	onChange        func(State)
}

// NewSession creates an inactive session. contestID may be uuid.Nil for
// practice mode, which switches to the soft three-strike policy.
func NewSession(cfg Config, authority Authority, source SnapshotSource, userID, problemID string, contestID uuid.UUID, log zerolog.Logger) *Session {
	s := &Session{
		cfg:         cfg,
		authority:   authority,
		source:      source,
		userID:      userID,
		problemID:   problemID,
		contestID:   contestID,
		callTimeout: 5 * time.Second,
		log: log.With().
			Str("component", "proctor_session").
			Str("user_id", userID).
			Logger(),
	}
	s.paste.Threshold = cfg.PasteThreshold
	return s
}

// OnChange registers a listener invoked after every state change. Must
// be set before Start.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Start transitions Inactive → Active, registers the detector callbacks
// and, in contest mode, begins the periodic monitoring snapshot timer.
// The fullscreen request itself happens client-side; a denial arrives
// later via FullscreenDenied and never blocks starting.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.active || s.disqualified {
		s.mu.Unlock()
		return
	}
	s.active = true

	s.unsubs = []Unsubscribe{
		s.visibility.Observe(s.reportViolation),
		s.fullscreen.Observe(s.reportViolation),
		s.paste.Observe(s.reportViolation),
	}

	if s.contestID != uuid.Nil && s.source != nil && s.cfg.SnapshotInterval > 0 {
		snapCtx, cancel := context.WithCancel(ctx)
		s.cancelSnapshots = cancel
		go s.snapshotLoop(snapCtx)
	}
	s.mu.Unlock()

	s.log.Info().Str("problem_id", s.problemID).Msg("Proctoring started")
	s.notifyChange()
}

// Stop tears the session down: the snapshot timer is cancelled (not
// merely ignored) and every detector registration is removed. Safe to
// call on any exit path, any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.cancelSnapshots != nil {
		s.cancelSnapshots()
		s.cancelSnapshots = nil
	}
	unsubs := s.unsubs
	s.unsubs = nil
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	if wasActive {
		s.log.Info().Msg("Proctoring stopped")
		s.notifyChange()
	}
}

// ReportVisibility feeds the client's page visibility to the detector.
func (s *Session) ReportVisibility(hidden bool) {
	s.visibility.Report(hidden)
}

// ReportFullscreen feeds the client's fullscreen state to the detector.
func (s *Session) ReportFullscreen(fullscreen bool) {
	s.fullscreen.Report(fullscreen)
}

// HandlePaste is the explicit hook the editor calls with pasted text.
func (s *Session) HandlePaste(text string) {
	s.mu.Lock()
	if !s.active || s.disqualified {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.paste.Paste(text)
}

// FullscreenDenied records a platform/user rejection of the fullscreen
// request. The session still runs; the user just gets told.
func (s *Session) FullscreenDenied(reason string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.warningText = fmt.Sprintf("Could not enter fullscreen mode: %s. The session continues without the fullscreen lock.", reason)
	s.mu.Unlock()

	s.log.Warn().Str("reason", reason).Msg("Fullscreen request denied")
	s.notifyChange()
}

// State returns the current externally visible state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Active:          s.active,
		InfractionCount: s.infractionCount,
		WarningText:     s.warningText,
		Disqualified:    s.disqualified,
		MaxInfractions:  s.cfg.MaxInfractions,
	}
}

// reportViolation applies the infraction policy to one violation. No-op
// while inactive or after disqualification.
func (s *Session) reportViolation(kind model.ViolationKind) {
	s.mu.Lock()
	if !s.active || s.disqualified {
		s.mu.Unlock()
		return
	}

	decision := Decide(s.infractionCount, s.cfg.MaxInfractions, kind)
	s.infractionCount = decision.NewCount
	s.warningText = decision.Message
	if decision.Disqualified {
		s.disqualified = true
	}

	inContest := s.contestID != uuid.Nil
	notifyServer := false
	if inContest && !s.notified {
		// Contest mode: any infraction disqualifies server-side right
		// away. The warning text above still reports strike progress.
		s.notified = true
		s.disqualified = true
		notifyServer = true
	}
	// Disqualification tears the snapshot timer down immediately; a
	// defunct session must not keep shipping webcam frames until the
	// connection drops.
	var cancelSnapshots context.CancelFunc
	if s.disqualified && s.cancelSnapshots != nil {
		cancelSnapshots = s.cancelSnapshots
		s.cancelSnapshots = nil
	}
	count := s.infractionCount
	s.mu.Unlock()

	if cancelSnapshots != nil {
		cancelSnapshots()
	}

	s.log.Warn().
		Str("kind", string(kind)).
		Uint("count", count).
		Bool("contest", inContest).
		Msg("Violation detected")

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	if err := s.authority.LogInfraction(ctx, s.contestID, s.userID, s.problemID, kind); err != nil {
		s.log.Error().Err(err).Msg("Infraction log failed")
	}
	if notifyServer {
		if err := s.authority.Disqualify(ctx, s.contestID, s.userID); err != nil {
			s.log.Error().Err(err).Msg("Server-side disqualify failed")
		}
	}

	s.notifyChange()
}

func (s *Session) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureSnapshot(ctx)
		}
	}
}

// captureSnapshot grabs one monitoring image and ships it. Failures on
// either step are logged and swallowed — monitoring never interrupts
// the session.
func (s *Session) captureSnapshot(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	imageURL, err := s.source.Capture(callCtx)
	if err != nil {
		s.log.Debug().Err(err).Msg("Snapshot capture failed")
		return
	}

	if err := s.authority.LogSnapshot(callCtx, s.contestID, s.userID, s.problemID, imageURL); err != nil {
		s.log.Warn().Err(err).Msg("Snapshot log failed")
	}
}

func (s *Session) notifyChange() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(s.State())
	}
}
