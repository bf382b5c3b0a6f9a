package services

import (
	"strings"
	"sync"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// Ensure ConversationMemory implements the interface.
var _ driving.MemoryService = (*ConversationMemory)(nil)

// DefaultMemoryCapacity is used when a non-positive capacity is given.
const DefaultMemoryCapacity = 10

// ConversationMemory is a fixed-capacity FIFO of completed exchanges,
// shared by every chat request of the process.
type ConversationMemory struct {
	mu       sync.Mutex
	capacity int
	entries  []domain.MemoryEntry
	now      func() time.Time
}

// NewConversationMemory creates a memory holding at most capacity entries.
func NewConversationMemory(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &ConversationMemory{
		capacity: capacity,
		entries:  make([]domain.MemoryEntry, 0, capacity),
		now:      time.Now,
	}
}

// Append records an exchange, evicting the oldest entries beyond capacity.
func (m *ConversationMemory) Append(user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, domain.MemoryEntry{
		UserText:      user,
		AssistantText: assistant,
		Timestamp:     m.now(),
	})
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
}

// RecentContext formats the last n exchanges for a prompt.
// Returns "" when there are no entries.
func (m *ConversationMemory) RecentContext(n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 || n <= 0 {
		return ""
	}
	start := max(len(m.entries)-n, 0)

	var b strings.Builder
	b.WriteString("Recent conversation:")
	for _, e := range m.entries[start:] {
		b.WriteString("\nUser: ")
		b.WriteString(e.UserText)
		b.WriteString("\nAssistant: ")
		b.WriteString(e.AssistantText)
	}
	return b.String()
}

// Entries returns a copy of the retained exchanges, oldest first.
func (m *ConversationMemory) Entries() []domain.MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.MemoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Clear drops every entry.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

// Len returns the number of retained exchanges.
func (m *ConversationMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Capacity returns the maximum number of retained exchanges.
func (m *ConversationMemory) Capacity() int {
	return m.capacity
}
