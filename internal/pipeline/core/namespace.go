package core

import (
	"fmt"
	"sync"

	"pubsub2inbox/internal/pipeline/utils"
)

// Namespace accumulates the named values produced while one event is
// processed. A fresh namespace is built per event.
type Namespace struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	readonly bool
}

// NewNamespace creates an empty namespace
func NewNamespace() *Namespace {
	return &Namespace{
		values: make(map[string]interface{}),
	}
}

// Set stores a value, replacing any previous value of the same name
func (n *Namespace) Set(key string, value interface{}) error {
	if n.readonly {
		return fmt.Errorf("cannot modify read-only namespace")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.values[key] = value
	return nil
}

// Merge stores every entry of values. Later writes win.
func (n *Namespace) Merge(values map[string]interface{}) error {
	if n.readonly {
		return fmt.Errorf("cannot modify read-only namespace")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for k, v := range values {
		n.values[k] = v
	}
	return nil
}

// Get retrieves a top-level value
func (n *Namespace) Get(key string) (interface{}, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	val, ok := n.values[key]
	return val, ok
}

// GetPath retrieves a nested value using dot notation (e.g. "event.attributes.kind")
func (n *Namespace) GetPath(path string) (interface{}, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return utils.GetFieldValue(n.values, path)
}

// All returns a shallow copy of the namespace, suitable as template data
func (n *Namespace) All() map[string]interface{} {
	n.mu.RLock()
	defer n.mu.RUnlock()

	result := make(map[string]interface{}, len(n.values))
	for k, v := range n.values {
		result[k] = v
	}
	return result
}

// Len returns the number of entries
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.values)
}

// Snapshot creates a read-only copy of the namespace
func (n *Namespace) Snapshot() *Namespace {
	return &Namespace{
		values:   n.All(),
		readonly: true,
	}
}

// ReadOnly reports whether Set and Merge are refused
func (n *Namespace) ReadOnly() bool {
	return n.readonly
}
