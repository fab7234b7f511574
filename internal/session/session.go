package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/metrics"
	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// ErrDuplicateSequence is returned when a target already holds a probe with the same sequence number.
var ErrDuplicateSequence = errors.New("duplicate sequence number")

// LogWriter persists session logs. repo.HistoryRepo satisfies it.
type LogWriter interface {
	Save(ctx context.Context, log models.SessionLog) error
}

// Options configures a Session.
type Options struct {
	// Targets fixes the report order; probes for other targets are appended in first-seen order.
	Targets    []string
	MaxHistory int
	Clock      func() time.Time
}

type targetState struct {
	probes []models.ProbeResult
	seqs   map[int64]struct{}
	// trimmed is the highest sequence number dropped by the history limit.
	trimmed    int64
	hasTrimmed bool
}

// Session owns the live probe histories of one monitoring run and the latest results of every
// analysis pass. Writers take the histories lock; passes work on snapshots.
type Session struct {
	id        string
	startedAt time.Time
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	store     LogWriter
	now       func() time.Time
	maxHist   int

	mu        sync.RWMutex
	order     []string
	histories map[string]*targetState

	resMu   sync.RWMutex
	results results

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

type results struct {
	generatedAt   time.Time
	connection    models.SessionConnection
	targetOutages []engine.TargetOutages
	fullOutages   []models.FullOutage
	stats         []models.SessionStats
}

// New creates an empty session with a fresh ID. store may be nil.
func New(logger *slog.Logger, pipeline *engine.Pipeline, store LogWriter, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		pipeline = engine.NewPipeline(logger, engine.Options{})
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	s := &Session{
		id:        uuid.NewString(),
		startedAt: clock(),
		logger:    logger,
		pipeline:  pipeline,
		store:     store,
		now:       clock,
		maxHist:   opts.MaxHistory,
		histories: make(map[string]*targetState, len(opts.Targets)),
	}
	for _, target := range opts.Targets {
		s.ensureTarget(target)
	}
	s.results.connection = models.SessionConnection{Status: models.StatusDisconnected}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Pipeline exposes the analysis parameters in use.
func (s *Session) Pipeline() *engine.Pipeline {
	return s.pipeline
}

// Append validates a probe and adds it to its target's history.
func (s *Session) Append(probe models.ProbeResult) error {
	if err := s.append(probe); err != nil {
		metrics.ObserveProbe(metrics.OutcomeRejected)
		return err
	}
	metrics.ObserveProbe(metrics.OutcomeAccepted)
	return nil
}

func (s *Session) append(probe models.ProbeResult) error {
	if err := probe.Validate(); err != nil {
		return utils.NewAppError("session.append", "rejected probe", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensureTarget(probe.TargetAddress)
	_, dup := state.seqs[probe.SequenceNumber]
	if dup || (state.hasTrimmed && probe.SequenceNumber <= state.trimmed) {
		return utils.NewAppError("session.append", "rejected probe",
			fmt.Errorf("%w: %s#%d", ErrDuplicateSequence, probe.TargetAddress, probe.SequenceNumber))
	}
	state.probes = append(state.probes, probe)
	state.seqs[probe.SequenceNumber] = struct{}{}

	if s.maxHist > 0 && len(state.probes) > s.maxHist {
		drop := len(state.probes) - s.maxHist
		for _, old := range state.probes[:drop] {
			delete(state.seqs, old.SequenceNumber)
			if !state.hasTrimmed || old.SequenceNumber > state.trimmed {
				state.trimmed = old.SequenceNumber
				state.hasTrimmed = true
			}
		}
		state.probes = append([]models.ProbeResult(nil), state.probes[drop:]...)
	}
	return nil
}

// Targets lists target addresses in report order.
func (s *Session) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Snapshot copies every history. Probe values are immutable, so copying the slices is enough.
func (s *Session) Snapshot() []models.TargetHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TargetHistory, 0, len(s.order))
	for _, address := range s.order {
		state := s.histories[address]
		out = append(out, models.TargetHistory{
			Address: address,
			Probes:  append([]models.ProbeResult(nil), state.probes...),
		})
	}
	return out
}

// Restore seeds the session from a saved log and recomputes every pass. The saved session ID is
// kept so subsequent saves replace the same log.
func (s *Session) Restore(ctx context.Context, log models.SessionLog) error {
	if log.SessionID != "" {
		s.id = log.SessionID
	}
	if !log.StartedAt.IsZero() {
		s.startedAt = log.StartedAt
	}
	for _, target := range log.Targets {
		s.mu.Lock()
		s.ensureTarget(target.Address)
		s.mu.Unlock()
		for _, probe := range target.Probes {
			if err := s.Append(probe); err != nil {
				return fmt.Errorf("restore %s: %w", target.Address, err)
			}
		}
	}
	s.logger.Info("session restored", slog.String("session_id", s.id), slog.Int("targets", len(log.Targets)))
	return s.RunAll(ctx)
}

// Log builds the persisted form of the session. Outages are recomputed from the same snapshot
// as the probes, so reloading the log reproduces them.
func (s *Session) Log() models.SessionLog {
	histories := s.Snapshot()
	targetOutages := s.pipeline.DetectOutages(histories)
	return s.logFrom(histories, targetOutages, s.pipeline.Correlate(targetOutages))
}

func (s *Session) logFrom(histories []models.TargetHistory, targetOutages []engine.TargetOutages, full []models.FullOutage) models.SessionLog {
	outagesByTarget := make(map[string][]models.TargetOutage, len(targetOutages))
	for _, target := range targetOutages {
		outagesByTarget[target.ID] = target.Outages
	}

	log := models.SessionLog{
		SessionID:   s.id,
		StartedAt:   s.startedAt,
		SavedAt:     s.now(),
		Targets:     make([]models.TargetLog, 0, len(histories)),
		FullOutages: full,
	}
	for _, history := range histories {
		outages := outagesByTarget[history.Address]
		if outages == nil {
			outages = []models.TargetOutage{}
		}
		log.Targets = append(log.Targets, models.TargetLog{
			Address: history.Address,
			Probes:  history.Probes,
			Outages: outages,
		})
	}
	if log.FullOutages == nil {
		log.FullOutages = []models.FullOutage{}
	}
	return log
}

// Report returns the latest results of every pass. Results are last-writer-wins per pass, so
// fields may come from different snapshots.
func (s *Session) Report() engine.Report {
	s.resMu.RLock()
	defer s.resMu.RUnlock()
	return engine.Report{
		GeneratedAt:   s.results.generatedAt,
		Connection:    s.results.connection,
		TargetOutages: s.results.targetOutages,
		FullOutages:   s.results.fullOutages,
		Stats:         s.results.stats,
	}
}

func (s *Session) ensureTarget(address string) *targetState {
	state, ok := s.histories[address]
	if !ok {
		state = &targetState{seqs: make(map[int64]struct{})}
		s.histories[address] = state
		s.order = append(s.order, address)
	}
	return state
}
