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

// Package rmetrics wraps the Prometheus collectors the reactor
// framework exposes: connection counts, byte counters, timer fires,
// and poller wait counts. Every piece of the framework that accepts
// a *Metrics is nil-safe without one, so instrumentation stays
// opt-in.
package rmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the framework's collectors, registered against a
// caller-supplied registry so tests and multiple framework instances
// in one process don't collide on Prometheus's global registry.
type Metrics struct {
	Connections prometheus.Gauge
	BytesIn     prometheus.Counter
	BytesOut    prometheus.Counter
	TimerFires  prometheus.Counter
	PollerWaits prometheus.Counter
	QueueDepth  prometheus.Gauge
}

// New builds and registers the framework's collectors against reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Number of currently established TCP connections.",
		}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Total bytes read from all connections.",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Total bytes written to all connections.",
		}),
		TimerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "timer_fires_total",
			Help: "Total number of timer callbacks that have fired.",
		}),
		PollerWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "poller_waits_total",
			Help: "Total number of poller wait calls issued by event loops.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_functors",
			Help: "Depth of the most recently observed event loop pending-functor queue.",
		}),
	}

	collectors := []prometheus.Collector{
		m.Connections, m.BytesIn, m.BytesOut, m.TimerFires, m.PollerWaits, m.QueueDepth,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ConnectionEstablished increments the active-connection gauge. Nil
// receiver is a no-op so callers can wire metrics optionally.
func (m *Metrics) ConnectionEstablished() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

// ConnectionClosed decrements the active-connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

// AddBytesIn adds n to the received-bytes counter.
func (m *Metrics) AddBytesIn(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesIn.Add(float64(n))
}

// AddBytesOut adds n to the sent-bytes counter.
func (m *Metrics) AddBytesOut(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesOut.Add(float64(n))
}

// TimerFired increments the timer-fire counter.
func (m *Metrics) TimerFired() {
	if m == nil {
		return
	}
	m.TimerFires.Inc()
}

// PollerWaited increments the poller-wait counter.
func (m *Metrics) PollerWaited() {
	if m == nil {
		return
	}
	m.PollerWaits.Inc()
}

// SetQueueDepth records the event loop's pending-functor queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
