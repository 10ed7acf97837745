// Package conversation implements ConversationLog, the append-only shared
// transcript of one task's agent turns, grounded on the teacher's
// agents/runtime/memory.Store and runtime/agent/runlog event-log shapes.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type (
	// Entry is one appended turn of the transcript.
	Entry struct {
		// Speaker is the agent name (or "system"/"planner") that produced
		// this entry.
		Speaker string
		// Text is the turn's textual content (prompt or response, depending
		// on how the caller chose to record it).
		Text string
		// Metadata carries implementation-defined annotations (cost,
		// duration, decision) for audit and rendering.
		Metadata map[string]any
		// Visible controls whether render_for_agent includes this entry in
		// a subsequent agent's prompt history.
		Visible bool
		// Timestamp records append time; order of Timestamp always equals
		// append order (spec.md §4.2 invariant).
		Timestamp time.Time
	}

	// Log is the ConversationLog for a single task. Append order equals
	// time order and entries are never rewritten (spec.md §4.2).
	Log struct {
		mu      sync.RWMutex
		entries []Entry
	}
)

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// Append records one turn. Timestamp is always stamped at append time.
func (l *Log) Append(speaker, text string, metadata map[string]any, visible bool) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Speaker:   speaker,
		Text:      text,
		Metadata:  metadata,
		Visible:   visible,
		Timestamp: time.Now(),
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a defensive copy of every appended entry, in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of appended entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// RenderForAgent produces a bounded textual history to embed in agentName's
// prompt, filtering out entries marked not-visible (spec.md §4.2). The
// rendering is deliberately simple (speaker-prefixed lines) so it composes
// predictably inside AgentInvoker's prompt template.
func (l *Log) RenderForAgent(_ context.Context, agentName string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var b strings.Builder
	for _, e := range l.entries {
		if !e.Visible {
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", e.Speaker, e.Text)
	}
	_ = agentName // reserved for future per-agent filtering; unused today
	return b.String()
}

// AppendClone appends every entry from other onto l, preserving relative
// order. Used by ParallelExecutor to reconcile each part's log-clone into
// the parent log in part-index order at join time (spec.md §5).
func (l *Log) AppendClone(other *Log) {
	entries := other.Entries()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
}

// Clone returns a new Log seeded with a copy of l's current entries, used to
// give each parallel part its own independent log (spec.md §4.7 step 3).
func (l *Log) Clone() *Log {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := New()
	out.entries = make([]Entry, len(l.entries))
	copy(out.entries, l.entries)
	return out
}
