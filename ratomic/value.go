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

// Package ratomic provides small generic, lock-free building blocks used
// across the reactor to publish state across goroutine boundaries without
// a mutex: loop state, connection state, counters and sequence numbers.
package ratomic

import (
	"reflect"
	"sync/atomic"
)

// Cast safely type-asserts src (as loaded from an atomic.Value) to M.
// The zero value of M never round-trips as "present": a freshly
// constructed Value reports it as absent, matching atomic.Value's own
// "first Store decides the concrete type" rule.
func Cast[M any](src any) (model M, ok bool) {
	if src == nil {
		return model, false
	}
	if reflect.DeepEqual(src, model) {
		return model, false
	}
	v, k := src.(M)
	return v, k
}

// Value is a type-safe wrapper over sync/atomic.Value.
type Value[T any] struct {
	av atomic.Value
}

// Load returns the current value, or the zero value of T if never stored.
func (v *Value[T]) Load() T {
	b, _ := Cast[boxed[T]](v.av.Load())
	return b.v
}

// Store sets the value atomically.
func (v *Value[T]) Store(val T) {
	v.av.Store(boxed[T]{val})
}

// Swap atomically stores new and returns the previous value.
func (v *Value[T]) Swap(new T) (old T) {
	prev := v.av.Swap(boxed[T]{new})
	if b, ok := prev.(boxed[T]); ok {
		return b.v
	}
	return old
}

// CompareAndSwap atomically stores new if the current value equals old,
// as compared with ==. T must be comparable; a non-comparable T panics.
func (v *Value[T]) CompareAndSwap(old, new T) bool {
	return v.av.CompareAndSwap(boxed[T]{old}, boxed[T]{new})
}

// boxed sidesteps atomic.Value's "all Store calls must use the same
// concrete type" requirement and the zero-value ambiguity of Cast by
// always storing through a single named struct type, whatever T is.
type boxed[T any] struct{ v T }

// Flag is a concurrency-safe boolean latch, used for the cooperative
// intent flags in the reactor (loop quit, connector stop, etc).
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Set(b bool)  { f.v.Store(b) }
func (f *Flag) Get() bool   { return f.v.Load() }
func (f *Flag) Flip() bool  { return !f.v.Swap(!f.v.Load()) }
func (f *Flag) CAS(old, new bool) bool {
	return f.v.CompareAndSwap(old, new)
}

// Counter is a monotonically increasing int64 counter, used for loop
// iteration counts, accepted-connection ids and timer sequence numbers.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Next() int64      { return c.v.Add(1) }
func (c *Counter) Load() int64      { return c.v.Load() }
func (c *Counter) Add(n int64) int64 { return c.v.Add(n) }
