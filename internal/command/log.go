package command

import "github.com/cityforge/server/internal/world"

// Log is the undo/redo stack pair. Undo and redo are strict LIFO with no
// squashing; any new Exec clears the redo stack.
type Log struct {
	undo []*Command
	redo []*Command
}

// NewLog returns an empty command log.
func NewLog() *Log {
	return &Log{}
}

// Exec applies the command and pushes it onto the undo stack.
func (l *Log) Exec(s *world.State, c *Command) {
	c.Apply(s)
	l.undo = append(l.undo, c)
	l.redo = l.redo[:0]
}

// Undo reverts the most recent command, if any.
func (l *Log) Undo(s *world.State) bool {
	if len(l.undo) == 0 {
		return false
	}
	c := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	c.Undo(s)
	l.redo = append(l.redo, c)
	return true
}

// Redo re-applies the most recently undone command, if any.
func (l *Log) Redo(s *world.State) bool {
	if len(l.redo) == 0 {
		return false
	}
	c := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	c.Apply(s)
	l.undo = append(l.undo, c)
	return true
}

// Clear drops both stacks. Called after a document load replaces the world.
func (l *Log) Clear() {
	l.undo = l.undo[:0]
	l.redo = l.redo[:0]
}

// CanUndo reports whether an undo step is available.
func (l *Log) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether a redo step is available.
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }
