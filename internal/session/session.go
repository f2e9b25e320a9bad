// Package session implements the single terminal session: process
// lifecycle, scrollback, subscriber fan-out and input forwarding.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shared-terminal/backend/internal/buffer"
	"github.com/shared-terminal/backend/internal/cast"
	"github.com/shared-terminal/backend/internal/journal"
	"github.com/shared-terminal/backend/internal/model"
	"github.com/shared-terminal/backend/internal/monitoring"
	"github.com/shared-terminal/backend/internal/term"
)

// readChunkSize is the maximum number of bytes drained from the PTY
// master per read. Chunk boundaries are never message boundaries.
const readChunkSize = 4096

// Subscriber is a duplex byte-stream handle owned by the transport layer.
// The session holds a non-owning reference; it closes the stream only on
// shutdown or after observing closure.
type Subscriber interface {
	// Send delivers bytes to the remote peer. It must not block on a slow
	// peer; implementations queue and fail fast instead.
	Send(data []byte) error

	// Receive blocks for the next message from the peer. Text frames are
	// delivered as their UTF-8 bytes.
	Receive() ([]byte, error)

	// IsClosed reports whether the stream is closed.
	IsClosed() bool

	// Close closes the stream. It must be idempotent.
	Close() error
}

// Process is the running terminal process as the session sees it.
// *term.Process is the production implementation.
type Process interface {
	Read(p []byte) (int, error)
	WriteSync(data []byte) error
	Resize(rows, cols uint16) error
	SignalWinch() error
	Wait() (int, error)
	Kill() error
	PID() int
	SlavePath() string
}

// StartFunc spawns the terminal process. The default uses term.Start;
// tests substitute a fake.
type StartFunc func(opts term.StartOptions) (Process, error)

func defaultStart(opts term.StartOptions) (Process, error) {
	return term.Start(opts)
}

// Config holds the session configuration.
type Config struct {
	// Command is the shell-interpreted command line spawned on the PTY.
	Command string

	// Rows and Cols are the initial window size. Zero falls back to 24x80.
	Rows uint16
	Cols uint16

	// Scrollback is the ring buffer capacity in bytes.
	Scrollback int

	// CastDir is the directory for asciinema recordings. Empty disables
	// recording.
	CastDir string

	// Starter overrides process creation. Nil means term.Start.
	Starter StartFunc
}

type subscriberEntry struct {
	id         string
	attachedAt time.Time
}

// Session is the singleton terminal session. It runs at most one process
// over its lifetime: Unstarted -> Running -> Completed, with Shutdown
// reachable from any state.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	journal *journal.Journal

	scrollback *buffer.RingBuffer
	starter    StartFunc

	// mu guards the state machine, the window size, the registry, and the
	// compound operations {ring append + broadcast} and {ring snapshot +
	// first frame + register}. That pairing is what makes the attach
	// snapshot exact: a subscriber sees every chunk exactly once.
	mu          sync.Mutex
	subscribers map[Subscriber]subscriberEntry
	proc        Process
	recorder    *cast.Recorder
	rows, cols  uint16
	pid         *int
	exitCode    *int
	started     bool
	shutdown    bool

	// writeMu serializes all writes to the PTY master: subscriber input
	// and the resize escape sequence. Interleaving of concurrent writes
	// is otherwise unspecified at the byte level.
	writeMu sync.Mutex
}

// New creates the session. It does not spawn the process; that happens on
// Start or on first attach.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics, jrnl *journal.Journal) *Session {
	if cfg.Rows == 0 {
		cfg.Rows = 24
	}
	if cfg.Cols == 0 {
		cfg.Cols = 80
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	starter := cfg.Starter
	if starter == nil {
		starter = defaultStart
	}

	return &Session{
		cfg:         cfg,
		logger:      logger.Named("session"),
		metrics:     metrics,
		journal:     jrnl,
		scrollback:  buffer.NewRingBuffer(cfg.Scrollback),
		starter:     starter,
		subscribers: make(map[Subscriber]subscriberEntry),
		rows:        cfg.Rows,
		cols:        cfg.Cols,
	}
}

// Start spawns the terminal process. It fails fast on PTY allocation or
// spawn errors and is never retried; a session runs at most one process.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return model.ErrShutDown
	}
	if s.started {
		s.mu.Unlock()
		return model.ErrAlreadyStarted
	}

	proc, err := s.starter(term.StartOptions{
		Command: s.cfg.Command,
		Rows:    s.rows,
		Cols:    s.cols,
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start terminal: %w", err)
	}

	s.proc = proc
	s.started = true
	pid := proc.PID()
	s.pid = &pid
	s.recorder = s.openRecorder()
	s.mu.Unlock()

	s.logger.Info("terminal started",
		zap.Int("pid", pid),
		zap.String("command", s.cfg.Command),
		zap.String("tty", proc.SlavePath()))
	s.metrics.SessionStarted()
	s.record(journal.KindStarted, fmt.Sprintf("pid=%d command=%s", pid, s.cfg.Command))

	go s.outputPump(proc)
	go s.waitForExit(proc)

	return nil
}

// openRecorder creates the cast recorder for this process start.
// Called with s.mu held; failures only disable recording.
func (s *Session) openRecorder() *cast.Recorder {
	if s.cfg.CastDir == "" {
		return nil
	}

	path := filepath.Join(s.cfg.CastDir, fmt.Sprintf("%d.cast", time.Now().Unix()))
	recorder, err := cast.NewRecorder(path, s.rows, s.cols, s.cfg.Command)
	if err != nil {
		s.logger.Warn("cast recording disabled", zap.Error(err))
		return nil
	}
	return recorder
}

// waitForExit blocks until the process exits and records the exit code.
// Exit is observed by this push notification, not by polling.
func (s *Session) waitForExit(proc Process) {
	code, err := proc.Wait()
	if err != nil {
		s.logger.Warn("terminal wait", zap.Error(err))
	}

	s.mu.Lock()
	s.exitCode = &code
	s.mu.Unlock()

	s.logger.Info("terminal exited", zap.Int("exitCode", code))
	s.metrics.SessionExited()
	s.record(journal.KindExited, fmt.Sprintf("exitCode=%d", code))
}

// outputPump drains the PTY master while the process is alive, appending
// each chunk to the scrollback and broadcasting it to subscribers.
func (s *Session) outputPump(proc Process) {
	buf := make([]byte, readChunkSize)

	for {
		n, err := proc.Read(buf)
		if n > 0 {
			s.dispatchOutput(buf[:n])
		}
		if err != nil {
			if !s.alive() {
				return
			}
			// Transient read error on a live process; avoid spinning.
			s.logger.Warn("pty read", zap.Error(err))
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// dispatchOutput appends one chunk to the scrollback and fans it out.
// Append and broadcast happen under the session lock so an attach snapshot
// can never miss or duplicate a chunk.
func (s *Session) dispatchOutput(chunk []byte) {
	// The pump reuses its read buffer and subscriber send queues hold on
	// to the slice after this call returns; copy before it escapes.
	data := append([]byte(nil), chunk...)

	s.mu.Lock()
	s.scrollback.Write(data)
	if s.recorder != nil {
		if err := s.recorder.WriteOutput(data); err != nil {
			s.logger.Warn("cast write", zap.Error(err))
		}
	}
	dead := s.broadcastLocked(data)
	s.mu.Unlock()

	s.metrics.OutputChunk(len(data))
	s.closeDetached(dead)
}

// broadcastLocked sends data to every registered subscriber, unregistering
// the ones found closed or failing. Callers close the returned streams
// after releasing the lock.
func (s *Session) broadcastLocked(data []byte) []Subscriber {
	var dead []Subscriber
	for sub := range s.subscribers {
		if sub.IsClosed() {
			dead = append(dead, sub)
			continue
		}
		if err := sub.Send(data); err != nil {
			s.logger.Debug("subscriber send failed", zap.Error(err))
			dead = append(dead, sub)
		}
	}

	for _, sub := range dead {
		s.removeLocked(sub)
	}
	s.metrics.Broadcast()
	return dead
}

// removeLocked unregisters a subscriber. Internal only: removal is a
// consequence of observed closure or shutdown, never an external request.
func (s *Session) removeLocked(sub Subscriber) {
	entry, ok := s.subscribers[sub]
	if !ok {
		return
	}
	delete(s.subscribers, sub)
	s.metrics.SubscriberDetached()
	s.record(journal.KindSubscriberDetached, entry.id)
	s.logger.Info("subscriber detached", zap.String("subscriber", entry.id))
}

// closeDetached closes streams that were unregistered during a broadcast
// pass. Idempotent per stream.
func (s *Session) closeDetached(subs []Subscriber) {
	for _, sub := range subs {
		if sub.IsClosed() {
			continue
		}
		if err := sub.Close(); err != nil {
			s.logger.Debug("subscriber close", zap.Error(err))
		}
	}
}

// Attach registers a subscriber stream. Its first message is always the
// current scrollback snapshot, even when empty. Attaching starts the
// process if it was never started. Idempotent per stream.
func (s *Session) Attach(sub Subscriber) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return model.ErrShutDown
	}
	if _, ok := s.subscribers[sub]; ok {
		s.mu.Unlock()
		return nil
	}

	entry := subscriberEntry{id: uuid.New().String(), attachedAt: time.Now()}
	s.subscribers[sub] = entry
	s.metrics.SubscriberAttached()

	// Snapshot and first frame under the same lock as registration, so
	// output appended concurrently is either in the snapshot or broadcast
	// later, never both, never neither.
	snapshot := s.scrollback.Snapshot()
	if snapshot == nil {
		snapshot = []byte{}
	}
	if err := sub.Send(snapshot); err != nil {
		s.removeLocked(sub)
		s.mu.Unlock()
		return fmt.Errorf("send scrollback: %w", err)
	}

	needStart := !s.started
	s.mu.Unlock()

	s.record(journal.KindSubscriberAttached, entry.id)
	s.logger.Info("subscriber attached", zap.String("subscriber", entry.id))

	if needStart {
		if err := s.Start(); err != nil && !errors.Is(err, model.ErrAlreadyStarted) {
			// The subscriber stays attached; it holds the scrollback and
			// the failure is visible in the status snapshot.
			s.logger.Error("auto start failed", zap.Error(err))
		}
	}

	go s.serviceLoop(sub, entry)
	return nil
}

// serviceLoop forwards subscriber input into the PTY until the stream
// closes. Per-iteration errors are logged and the loop continues.
func (s *Session) serviceLoop(sub Subscriber, entry subscriberEntry) {
	for {
		if sub.IsClosed() {
			break
		}

		data, err := sub.Receive()
		if err != nil {
			if sub.IsClosed() {
				break
			}
			s.logger.Warn("subscriber receive",
				zap.String("subscriber", entry.id), zap.Error(err))
			continue
		}
		if len(data) == 0 {
			continue
		}

		if err := s.WriteInput(data); err != nil {
			s.logger.Warn("input write",
				zap.String("subscriber", entry.id), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.removeLocked(sub)
	s.mu.Unlock()

	if !sub.IsClosed() {
		if err := sub.Close(); err != nil {
			s.logger.Debug("subscriber close", zap.Error(err))
		}
	}
}

// WriteInput writes bytes to the PTY master, serialized against all other
// master writes, and syncs the write through.
func (s *Session) WriteInput(data []byte) error {
	s.mu.Lock()
	proc := s.proc
	recorder := s.recorder
	s.mu.Unlock()

	if proc == nil {
		return model.ErrNotStarted
	}

	s.writeMu.Lock()
	err := proc.WriteSync(data)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.metrics.InputWrite(len(data))
	if recorder != nil {
		if err := recorder.WriteInput(data); err != nil {
			s.logger.Warn("cast write", zap.Error(err))
		}
	}
	return nil
}

// Resize applies a new window size. The stored size changes only after the
// device-level resize succeeds; the SIGWINCH and the escape sequence that
// follow are best-effort.
func (s *Session) Resize(rows, cols uint16) error {
	if rows == 0 || cols == 0 {
		return model.ErrInvalidDimensions
	}

	s.mu.Lock()
	if !s.aliveLocked() {
		s.mu.Unlock()
		return model.ErrNotRunning
	}
	proc := s.proc

	if err := proc.Resize(rows, cols); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("resize pty: %w", err)
	}
	s.rows, s.cols = rows, cols
	s.mu.Unlock()

	if err := proc.SignalWinch(); err != nil {
		s.logger.Warn("winch signal", zap.Error(err))
	}

	// Applications not trapping SIGWINCH still observe the new geometry
	// through the xterm window manipulation sequence.
	escape := fmt.Sprintf("\x1b[8;%d;%dt", rows, cols)
	s.writeMu.Lock()
	err := proc.WriteSync([]byte(escape))
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("resize escape write", zap.Error(err))
	}

	s.metrics.Resized()
	s.record(journal.KindResized, fmt.Sprintf("rows=%d cols=%d", rows, cols))
	s.logger.Info("terminal resized", zap.Uint16("rows", rows), zap.Uint16("cols", cols))
	return nil
}

// Shutdown kills the process, closes every subscriber stream and empties
// the registry. Safe to call repeatedly; only the first call acts.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true

	proc := s.proc
	recorder := s.recorder
	s.recorder = nil

	subs := make([]Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
		s.metrics.SubscriberDetached()
	}
	s.subscribers = make(map[Subscriber]subscriberEntry)
	s.mu.Unlock()

	if proc != nil {
		if err := proc.Kill(); err != nil {
			s.logger.Warn("terminal kill", zap.Error(err))
		}
	}

	for _, sub := range subs {
		if sub.IsClosed() {
			continue
		}
		if err := sub.Close(); err != nil {
			s.logger.Debug("subscriber close", zap.Error(err))
		}
	}

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			s.logger.Warn("cast close", zap.Error(err))
		}
	}

	s.record(journal.KindShutdown, "")
	s.logger.Info("session shut down", zap.Int("subscribersClosed", len(subs)))
	return nil
}

// Status returns the serializable session snapshot.
func (s *Session) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := model.Status{
		IsStarted:   s.started,
		IsCompleted: s.started && s.exitCode != nil,
		Rows:        s.rows,
		Cols:        s.cols,
		Subscribers: len(s.subscribers),
	}
	if s.pid != nil {
		pid := *s.pid
		status.PID = &pid
	}
	if s.exitCode != nil {
		code := *s.exitCode
		status.ExitCode = &code
	}
	return status
}

// SubscriberCount returns the number of registered subscribers.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Scrollback returns a copy of the current scrollback contents.
func (s *Session) Scrollback() []byte {
	return s.scrollback.Snapshot()
}

func (s *Session) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

func (s *Session) aliveLocked() bool {
	return s.started && s.exitCode == nil && !s.shutdown
}

func (s *Session) record(kind, detail string) {
	if err := s.journal.Record(context.Background(), kind, detail); err != nil {
		s.logger.Warn("journal record", zap.String("kind", kind), zap.Error(err))
	}
}
