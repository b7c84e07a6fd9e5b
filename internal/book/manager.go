package book

import (
	"sort"
	"sync"

	"main/internal/clock"
)

// Manager owns one book per subscribed symbol. Lookups are read-mostly;
// creation of a new symbol's book takes the write lock once.
type Manager struct {
	clk *clock.Clock

	mu    sync.RWMutex
	books map[string]*Book
}

// NewManager creates an empty manager. A nil clk uses the shared clock.
func NewManager(clk *clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Shared()
	}
	return &Manager{
		clk:   clk,
		books: make(map[string]*Book),
	}
}

// Get returns the book for symbol, creating it on first use.
func (m *Manager) Get(symbol string) *Book {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b
	}
	b = New(symbol, m.clk)
	m.books[symbol] = b
	return b
}

// Has reports whether a book exists for symbol.
func (m *Manager) Has(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.books[symbol]
	return ok
}

// Remove drops the book for symbol, if any.
func (m *Manager) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, symbol)
}

// Symbols returns the tracked symbols in lexical order.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.books))
	for symbol := range m.books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// ClearAll drops every book.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.books)
}
