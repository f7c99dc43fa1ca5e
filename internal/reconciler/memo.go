package reconciler

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// Memo remembers the version token last applied for each tracked entity so
// unchanged sub-artifacts can be skipped. It is an optimization only: a
// missing or stale entry costs a redundant compare, never a wrong result.
// The zero value is ready to use.
type Memo struct {
	mu     sync.Mutex
	tokens map[string]string
}

// Unchanged reports whether key was last recorded with token.
func (m *Memo) Unchanged(key, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[key]
	return ok && t == token
}

// Record stores token for key. Call it only after the artifact derived
// from token was committed successfully.
func (m *Memo) Record(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]string)
	}
	m.tokens[key] = token
}

// Forget drops key.
func (m *Memo) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
}

// Retain drops every key not in keys.
func (m *Memo) Retain(keys []string) {
	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		keep[k] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.tokens {
		if !keep[k] {
			delete(m.tokens, k)
		}
	}
}

// Reset empties the memo.
func (m *Memo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// ContentToken returns a version token for content that carries no serial
// of its own. Parts are length-prefixed so that ("ab","c") and ("a","bc")
// differ.
func ContentToken(parts ...[]byte) string {
	h := blake3.New()
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
