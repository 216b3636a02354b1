// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"sync"
)

// ErrBackendClosed is returned after Close.
var ErrBackendClosed = errors.New("backend closed")

// MemoryBackend is a process-local Backend, used in tests and demos.
type MemoryBackend struct {
	mu         sync.RWMutex
	data       map[string][]byte
	closed     bool
	failWrites bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBackendClosed
	}
	v, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.failWrites {
		return errors.New("quota exceeded")
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.data[key] = v
	return nil
}

// SetFailWrites makes Set fail, simulating a full or read-only store.
func (b *MemoryBackend) SetFailWrites(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites = fail
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
