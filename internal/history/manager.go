package history

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/observe"
)

// DefaultMaxSize is the default undo stack bound.
const DefaultMaxSize = 100

// State summarises the stacks for observers.
type State struct {
	CanUndo  bool `json:"canUndo"`
	CanRedo  bool `json:"canRedo"`
	UndoSize int  `json:"undoSize"`
	RedoSize int  `json:"redoSize"`
}

// Manager keeps the undo and redo stacks. It is not safe for concurrent use.
type Manager struct {
	undo      []Command
	redo      []Command
	maxSize   int
	merging   bool
	disabled  bool
	batch     *BatchCommand
	last      State
	observers observe.List[State]
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSize bounds the undo stack. The oldest entries are dropped first.
// Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(m *Manager) {
		if n >= 1 {
			m.maxSize = n
		}
	}
}

// WithMerging turns coalescing of mergeable commands on or off.
func WithMerging(on bool) Option {
	return func(m *Manager) { m.merging = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns an enabled manager with empty stacks.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxSize: DefaultMaxSize,
		merging: true,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute runs cmd and records it. While disabled the command runs but is
// not recorded. Inside a batch it joins the batch.
func (m *Manager) Execute(cmd Command) error {
	if err := cmd.Execute(); err != nil {
		return err
	}
	if m.disabled {
		return nil
	}
	if m.batch != nil {
		m.batch.add(cmd)
		return nil
	}
	m.record(cmd)
	return nil
}

func (m *Manager) record(cmd Command) {
	m.redo = nil
	if m.merging && len(m.undo) > 0 {
		if top, ok := m.undo[len(m.undo)-1].(Merger); ok && top.Merge(cmd) {
			m.logger.Debug("history: merged command", slog.String("label", cmd.Label()))
			m.notify()
			return
		}
	}
	m.undo = append(m.undo, cmd)
	if over := len(m.undo) - m.maxSize; over > 0 {
		m.undo = slices.Delete(m.undo, 0, over)
		m.logger.Debug("history: dropped oldest entries", slog.Int("count", over))
	}
	m.notify()
}

// Undo reverts the latest command and reports whether there was one. A
// command whose undo fails stays on the undo stack.
func (m *Manager) Undo() (bool, error) {
	if m.batch != nil {
		return false, fmt.Errorf("history: undo: %w", apperr.ErrBatchActive)
	}
	if len(m.undo) == 0 {
		return false, nil
	}
	cmd := m.undo[len(m.undo)-1]
	if err := cmd.Undo(); err != nil {
		return false, fmt.Errorf("history: undo %q: %w", cmd.Label(), err)
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cmd)
	m.notify()
	return true, nil
}

// Redo re-executes the latest undone command and reports whether there was
// one.
func (m *Manager) Redo() (bool, error) {
	if m.batch != nil {
		return false, fmt.Errorf("history: redo: %w", apperr.ErrBatchActive)
	}
	if len(m.redo) == 0 {
		return false, nil
	}
	cmd := m.redo[len(m.redo)-1]
	if err := cmd.Execute(); err != nil {
		return false, fmt.Errorf("history: redo %q: %w", cmd.Label(), err)
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, cmd)
	m.notify()
	return true, nil
}

// CanUndo reports whether Undo has work to do.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo has work to do.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoLabel returns the label of the command Undo would revert.
func (m *Manager) UndoLabel() string {
	if len(m.undo) == 0 {
		return ""
	}
	return m.undo[len(m.undo)-1].Label()
}

// RedoLabel returns the label of the command Redo would re-apply.
func (m *Manager) RedoLabel() string {
	if len(m.redo) == 0 {
		return ""
	}
	return m.redo[len(m.redo)-1].Label()
}

// BeginBatch starts collecting executed commands into one undo step.
// Batches do not nest.
func (m *Manager) BeginBatch(label string) error {
	if m.batch != nil {
		return fmt.Errorf("history: begin batch %q: %w", label, apperr.ErrBatchActive)
	}
	m.batch = NewBatchCommand(label)
	return nil
}

// EndBatch closes the active batch and records it. An empty batch is
// discarded.
func (m *Manager) EndBatch() error {
	if m.batch == nil {
		return fmt.Errorf("history: end batch: %w", apperr.ErrNoBatch)
	}
	b := m.batch
	m.batch = nil
	if b.Len() > 0 {
		m.record(b)
	}
	return nil
}

// AbortBatch closes the active batch and reverts its commands, last first.
// Nothing is recorded and the redo stack is left alone.
func (m *Manager) AbortBatch() error {
	if m.batch == nil {
		return fmt.Errorf("history: abort batch: %w", apperr.ErrNoBatch)
	}
	b := m.batch
	m.batch = nil
	if err := undoAll(b.commands); err != nil {
		return fmt.Errorf("history: abort batch %q: %w", b.label, err)
	}
	return nil
}

// InBatch reports whether a batch is open.
func (m *Manager) InBatch() bool { return m.batch != nil }

// Enable resumes recording.
func (m *Manager) Enable() { m.disabled = false }

// Disable stops recording. Executed commands still run.
func (m *Manager) Disable() { m.disabled = true }

// Enabled reports whether commands are being recorded.
func (m *Manager) Enabled() bool { return !m.disabled }

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.undo, m.redo = nil, nil
	m.notify()
}

// State returns the current stack summary.
func (m *Manager) State() State {
	return State{
		CanUndo:  len(m.undo) > 0,
		CanRedo:  len(m.redo) > 0,
		UndoSize: len(m.undo),
		RedoSize: len(m.redo),
	}
}

// Observe registers fn for state changes and returns a function that
// unregisters it.
func (m *Manager) Observe(fn func(State)) (cancel func()) {
	return m.observers.Add(fn)
}

func (m *Manager) notify() {
	s := m.State()
	if s == m.last {
		return
	}
	m.last = s
	m.observers.Notify(s, m.logger, "history")
}
