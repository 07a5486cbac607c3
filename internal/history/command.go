// Package history records store mutations as reversible commands and
// provides linear undo/redo over them.
package history

import (
	"errors"
	"fmt"
	"slices"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/geometry"
	"github.com/starford/annota/internal/models"
)

// Command is a reversible mutation. Execute is also used to redo.
type Command interface {
	Execute() error
	Undo() error
	Label() string
}

// Merger is implemented by commands that can absorb the next command, such
// as successive updates during a drag. Merge reports whether it did; the
// absorbed command has already been executed.
type Merger interface {
	Merge(next Command) bool
}

// Store is the part of the annotation store commands mutate.
type Store interface {
	Add(a models.Annotation) error
	Update(id string, a models.Annotation) error
	Delete(id string) bool
	Has(id string) bool
}

// CreateCommand adds one annotation.
type CreateCommand struct {
	store Store
	ann   models.Annotation
}

// NewCreateCommand returns a command that adds a to s.
func NewCreateCommand(s Store, a models.Annotation) *CreateCommand {
	return &CreateCommand{store: s, ann: a.Clone()}
}

func (c *CreateCommand) Execute() error { return c.store.Add(c.ann) }

func (c *CreateCommand) Undo() error {
	if !c.store.Delete(c.ann.ID) {
		return fmt.Errorf("history: undo create %q: %w", c.ann.ID, apperr.ErrNotFound)
	}
	return nil
}

func (c *CreateCommand) Label() string { return "Create " + string(c.ann.Kind()) }

// UpdateCommand replaces an annotation. Consecutive updates of the same id
// merge into one undo step.
type UpdateCommand struct {
	store  Store
	before models.Annotation
	after  models.Annotation
}

// NewUpdateCommand returns a command that turns before into after.
func NewUpdateCommand(s Store, before, after models.Annotation) *UpdateCommand {
	return &UpdateCommand{store: s, before: before.Clone(), after: after.Clone()}
}

// ID returns the id of the updated annotation.
func (c *UpdateCommand) ID() string { return c.before.ID }

func (c *UpdateCommand) Execute() error { return c.replace(c.after) }
func (c *UpdateCommand) Undo() error { return c.replace(c.before) }

func (c *UpdateCommand) replace(a models.Annotation) error {
	id := c.before.ID
	if !c.store.Has(id) {
		return fmt.Errorf("history: update %q: %w", id, apperr.ErrNotFound)
	}
	return c.store.Update(id, a)
}

func (c *UpdateCommand) Label() string { return "Update " + string(c.after.Kind()) }

// Merge absorbs a later update of the same annotation.
func (c *UpdateCommand) Merge(next Command) bool {
	n, ok := next.(*UpdateCommand)
	if !ok || n.before.ID != c.before.ID {
		return false
	}
	c.after = n.after.Clone()
	return true
}

// DeleteCommand removes one annotation.
type DeleteCommand struct {
	store Store
	ann   models.Annotation
}

// NewDeleteCommand returns a command that removes a from s. a must be the
// current record so undo can restore it.
func NewDeleteCommand(s Store, a models.Annotation) *DeleteCommand {
	return &DeleteCommand{store: s, ann: a.Clone()}
}

func (c *DeleteCommand) Execute() error {
	if !c.store.Delete(c.ann.ID) {
		return fmt.Errorf("history: delete %q: %w", c.ann.ID, apperr.ErrNotFound)
	}
	return nil
}

func (c *DeleteCommand) Undo() error { return c.store.Add(c.ann) }
func (c *DeleteCommand) Label() string { return "Delete " + string(c.ann.Kind()) }

// BatchCommand runs commands as one unit. A failure part way through rolls
// back the steps already taken.
type BatchCommand struct {
	label    string
	commands []Command
}

// NewBatchCommand groups cmds under label.
func NewBatchCommand(label string, cmds ...Command) *BatchCommand {
	return &BatchCommand{label: label, commands: slices.Clone(cmds)}
}

// Len returns the number of grouped commands.
func (b *BatchCommand) Len() int { return len(b.commands) }

func (b *BatchCommand) add(c Command) { b.commands = append(b.commands, c) }

func (b *BatchCommand) Execute() error {
	for i, c := range b.commands {
		if err := c.Execute(); err != nil {
			return errors.Join(err, undoAll(b.commands[:i]))
		}
	}
	return nil
}

// Undo reverts the commands in reverse order.
func (b *BatchCommand) Undo() error {
	for i := len(b.commands) - 1; i >= 0; i-- {
		if err := b.commands[i].Undo(); err != nil {
			return errors.Join(err, redoAll(b.commands[i+1:]))
		}
	}
	return nil
}

func (b *BatchCommand) Label() string { return b.label }

// undoAll reverts cmds last to first.
func undoAll(cmds []Command) error {
	var errs []error
	for i := len(cmds) - 1; i >= 0; i-- {
		if err := cmds[i].Undo(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func redoAll(cmds []Command) error {
	var errs []error
	for _, c := range cmds {
		if err := c.Execute(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SplitCommand replaces one annotation with the pieces a cut line divides
// it into.
type SplitCommand struct {
	store  Store
	source models.Annotation
	pieces []models.Annotation
}

// NewSplitCommand cuts source along line. It reports false when the line
// does not divide the shape.
func NewSplitCommand(s Store, source models.Annotation, line []models.Point, opts ...geometry.Option) (*SplitCommand, bool) {
	pieces, ok := geometry.Split(source, line, opts...)
	if !ok {
		return nil, false
	}
	return &SplitCommand{store: s, source: source.Clone(), pieces: pieces}, true
}

// Pieces returns the annotations the split produces.
func (c *SplitCommand) Pieces() []models.Annotation {
	out := make([]models.Annotation, len(c.pieces))
	for i, p := range c.pieces {
		out[i] = p.Clone()
	}
	return out
}

func (c *SplitCommand) Execute() error {
	if !c.store.Delete(c.source.ID) {
		return fmt.Errorf("history: split %q: %w", c.source.ID, apperr.ErrNotFound)
	}
	for i, p := range c.pieces {
		if err := c.store.Add(p); err != nil {
			for _, added := range c.pieces[:i] {
				c.store.Delete(added.ID)
			}
			return errors.Join(err, c.store.Add(c.source))
		}
	}
	return nil
}

func (c *SplitCommand) Undo() error {
	for _, p := range c.pieces {
		c.store.Delete(p.ID)
	}
	return c.store.Add(c.source)
}

func (c *SplitCommand) Label() string { return "Split " + string(c.source.Kind()) }
