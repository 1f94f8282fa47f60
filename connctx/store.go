/*
 * MIT License
 *
 * Copyright (c) 2026 netreactor contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package connctx gives a connection an arbitrary, per-connection
// context slot so application code can stash session state without
// subclassing the connection type. Store is a typed, concurrency-safe
// key/value holder for that purpose.
package connctx

import "sync"

// Store holds arbitrary per-connection key/value state. It is set by
// application code from inside a user callback (so normally from the
// connection's single owning loop thread) and is safe to read from any
// thread that still holds a reference to the connection.
type Store struct {
	mu sync.RWMutex
	m  map[string]interface{}
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores val under key, replacing any previous value.
func (s *Store) Set(key string, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]interface{})
	}
	s.m[key] = val
}

// Delete removes key, if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Clear empties the store, e.g. when a connection is recycled.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = nil
}

// Get1 is a generic convenience wrapper over Get, for callers that know
// the concrete type they stashed.
func Get1[T any](s *Store, key string) (val T, ok bool) {
	raw, present := s.Get(key)
	if !present {
		return val, false
	}
	v, k := raw.(T)
	return v, k
}
