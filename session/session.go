// Package session is the control-thread authority over a project. It owns
// the graph, parameters, arrangement and audio pool, validates every
// mutation, and publishes immutable snapshots to a paired engine without
// ever waiting for it.
package session

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/catalog"
	"github.com/cwbudde/algo-synth/engine"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/param"
	"github.com/cwbudde/algo-synth/transport"
)

// ErrUnsealedRegistry is returned when WithRegistry passes a registry that
// can still be modified.
var ErrUnsealedRegistry = errors.New("node registry must be sealed")

// Session is not safe for concurrent use. All methods run on the control
// thread; the paired Engine runs on the audio thread.
type Session struct {
	id      uuid.UUID
	cfg     Config
	log     *slog.Logger
	metrics *metrics
	warn    *rate.Limiter

	registry  *node.Registry
	graph     *graph.Graph
	params    *param.Store
	arr       *arrange.Arrangement
	transport *transport.Transport

	eng   *engine.Engine
	link  engine.Link
	cache *engine.InstanceCache

	version      uint64
	graphPlan    *engine.GraphPlan
	graphVersion uint64
	routes       []engine.Route
	arrPlan      *engine.ArrangementPlan
	arrVersion   uint64
	laneVersion  uint64
	pending      *engine.Snapshot

	// Commands the queue dropped whose state must still reach the engine.
	runDirty      bool
	dirtyParams   map[param.Key]struct{}
	dirtyGestures map[param.Key]struct{}

	readback engine.Readback
}

// New creates a session and its paired engine and publishes the initial
// empty snapshot.
func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	if o.registry == nil {
		o.registry = catalog.NewRegistry()
	}
	if !o.registry.Sealed() {
		return nil, ErrUnsealedRegistry
	}

	ec := cfg.Engine()
	eng, err := engine.New(ec)
	if err != nil {
		return nil, err
	}
	tr, err := transport.New(cfg.Tempo)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	s := &Session{
		id:        id,
		cfg:       cfg,
		log:       o.logger.With("component", "session", "session_id", id.String()),
		metrics:   newMetrics(o.registerer, id.String()),
		warn:      rate.NewLimiter(rate.Every(time.Second), 1),
		registry:  o.registry,
		graph:     graph.New(o.registry),
		params:    param.NewStore(),
		arr:       arrange.New(),
		transport: tr,
		eng:       eng,
		link:      eng.Link(),
		cache:     engine.NewInstanceCache(o.registry, ec),

		dirtyParams:   make(map[param.Key]struct{}),
		dirtyGestures: make(map[param.Key]struct{}),
	}
	s.commit()
	s.log.Info("session created", "name", cfg.Name, "sample_rate", cfg.SampleRate)
	return s, nil
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Config returns the configuration the session was created with.
func (s *Session) Config() Config {
	return s.cfg
}

// Engine returns the paired engine. Only the audio thread may call its
// Process and Close methods.
func (s *Session) Engine() *engine.Engine {
	return s.eng
}

// Registry returns the node registry.
func (s *Session) Registry() *node.Registry {
	return s.registry
}

// commit builds a snapshot of the current model and queues it. A snapshot
// that does not fit stays pending and replaces any older pending one.
func (s *Session) commit() {
	snap, err := s.build()
	if err != nil {
		s.log.Error("snapshot build failed", "err", err)
		return
	}
	s.pending = snap
	s.flush()
}

func (s *Session) build() (*engine.Snapshot, error) {
	routes := engine.Routes(s.arr.Tracks(), s.cfg.MaxTracks)
	if s.graphPlan == nil || s.graphVersion != s.graph.Version() || !slices.Equal(routes, s.routes) {
		gp, err := engine.CompileGraph(s.graph, routes, s.cache, s.cfg.Engine())
		if err != nil {
			return nil, err
		}
		s.graphPlan, s.graphVersion, s.routes = gp, s.graph.Version(), routes
	}
	if s.arrPlan == nil || s.arrVersion != s.arr.Version() || s.laneVersion != s.params.Version() {
		s.arrPlan = engine.CompileArrangement(s.arr.Version(), s.arr, s.params.Lanes())
		s.arrVersion, s.laneVersion = s.arr.Version(), s.params.Version()
	}
	s.version++
	return engine.NewSnapshot(s.version, s.graphPlan, s.arrPlan), nil
}

// flush pushes the pending snapshot and reports whether none is left.
func (s *Session) flush() bool {
	if s.pending == nil {
		return true
	}
	if !s.link.Commands.TryPush(engine.Command{Kind: engine.CmdSwapSnapshot, Snapshot: s.pending}) {
		s.queueFull(engine.CmdSwapSnapshot)
		return false
	}
	s.metrics.snapshotsPublished.Inc()
	s.metrics.commands.WithLabelValues(engine.CmdSwapSnapshot.String()).Inc()
	s.log.Debug("snapshot published", "version", s.pending.Version)
	s.pending = nil
	return true
}

// send queues a command behind any pending snapshot. It reports false if
// the command was dropped.
func (s *Session) send(cmd engine.Command) bool {
	if !s.flush() || !s.link.Commands.TryPush(cmd) {
		s.metrics.commandsDropped.Inc()
		s.queueFull(cmd.Kind)
		return false
	}
	s.metrics.commands.WithLabelValues(cmd.Kind.String()).Inc()
	return true
}

// resend retries the run state, gesture and parameter commands the queue
// dropped, using the current model values. It stops at the first drop.
func (s *Session) resend() {
	if s.runDirty && !s.sendRun() {
		return
	}
	for k := range s.dirtyGestures {
		if _, err := s.graph.Param(k.Node, k.Param); err != nil {
			delete(s.dirtyGestures, k)
			continue
		}
		if !s.sendGesture(k) {
			return
		}
	}
	for k := range s.dirtyParams {
		v, err := s.graph.Param(k.Node, k.Param)
		if err != nil {
			delete(s.dirtyParams, k)
			continue
		}
		if !s.sendParam(k, v) {
			return
		}
	}
}

func (s *Session) sendRun() bool {
	kind := engine.CmdStop
	if s.transport.Playing() {
		kind = engine.CmdPlay
	}
	s.runDirty = !s.send(engine.Command{Kind: kind})
	return !s.runDirty
}

func (s *Session) sendParam(k param.Key, v float32) bool {
	if !s.send(engine.Command{Kind: engine.CmdSetParam, Node: k.Node, Param: k.Param, Value: v}) {
		s.dirtyParams[k] = struct{}{}
		return false
	}
	delete(s.dirtyParams, k)
	return true
}

// sendGesture sends the current open state of a gesture.
func (s *Session) sendGesture(k param.Key) bool {
	kind := engine.CmdGestureEnd
	if s.params.Open(k) {
		kind = engine.CmdGestureBegin
	}
	if !s.send(engine.Command{Kind: kind, Node: k.Node, Param: k.Param}) {
		s.dirtyGestures[k] = struct{}{}
		return false
	}
	delete(s.dirtyGestures, k)
	return true
}

func (s *Session) queueFull(kind engine.CommandKind) {
	if s.warn.Allow() {
		s.log.Warn("engine command queue full", "kind", kind.String())
	}
}

func (s *Session) rejected(op string, err error, args ...any) error {
	s.log.Debug("mutation rejected", append([]any{"op", op, "err", err}, args...)...)
	return err
}

// Pending reports whether a snapshot is waiting for queue space.
func (s *Session) Pending() bool {
	return s.pending != nil
}

// SnapshotVersion returns the version of the most recently built snapshot.
func (s *Session) SnapshotVersion() uint64 {
	return s.version
}

// Poll reads the latest engine readback, drains reclaimed snapshots,
// retries a pending snapshot and updates the metrics.
func (s *Session) Poll() engine.Readback {
	if rb, fresh := s.link.Readback.Read(); fresh {
		s.readback = rb
		s.transport.Sync(rb.BeatPosition, rb.SamplePosition)
	}
	for {
		if _, ok := s.link.Reclaim.TryPop(); !ok {
			break
		}
		s.metrics.snapshotsReclaimed.Inc()
	}
	if s.flush() {
		s.resend()
	}
	s.metrics.observe(s.readback.CPULoad, s.readback.ActiveVoices, s.readback.DroppedEvents)
	return s.readback
}

// Readback returns the readback seen by the last Poll.
func (s *Session) Readback() engine.Readback {
	return s.readback
}
