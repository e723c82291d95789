package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrSaveFailed is returned by MemoryKV.Save while saves are failing.
var ErrSaveFailed = errors.New("testutil: save failed")

// MemoryKV is an in-memory stand-in for the device key/value store.
type MemoryKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failSaves bool
	saves     int
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Load returns a copy of the blob under key, or nil.
func (kv *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of value under key.
func (kv *MemoryKV) Save(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.failSaves {
		return ErrSaveFailed
	}
	kv.saves++
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

// FailSaves makes every later Save fail (or succeed again).
func (kv *MemoryKV) FailSaves(fail bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.failSaves = fail
}

// Saves returns the number of successful saves.
func (kv *MemoryKV) Saves() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.saves
}

// Raw returns the stored blob as a string ("" if missing).
func (kv *MemoryKV) Raw(key string) string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return string(kv.data[key])
}
