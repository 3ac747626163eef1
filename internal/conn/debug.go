// Copyright 2021 Mongorel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conn

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	namespace = "mongorel"
	subsystem = "collection"
)

// Metrics collects operation metrics of instrumented collection wrappers.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of collection operations.",
			},
			[]string{"collection", "operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Collection operation durations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection", "operation"},
		),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.duration.Collect(ch)
}

// debugCollection instruments another Collection with debug logs and metrics
// without altering semantics.
type debugCollection struct {
	c Collection
	m *Metrics
	l *zap.Logger
}

func newDebugCollection(c Collection, m *Metrics, l *zap.Logger) *debugCollection {
	return &debugCollection{
		c: c,
		m: m,
		l: l,
	}
}

func (dc *debugCollection) observe(op string, start time.Time, err error) {
	took := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
	}

	dc.m.requests.WithLabelValues(dc.c.Name(), op, result).Inc()
	dc.m.duration.WithLabelValues(dc.c.Name(), op).Observe(took.Seconds())

	dc.l.Debug(op,
		zap.String("collection", dc.c.Name()),
		zap.Duration("took", took),
		zap.Error(err))
}

func (dc *debugCollection) Name() string {
	return dc.c.Name()
}

func (dc *debugCollection) Insert(ctx context.Context, doc bson.D) (id primitive.ObjectID, err error) {
	start := time.Now()
	defer func() { dc.observe("insert", start, err) }()
	id, err = dc.c.Insert(ctx, doc)
	return
}

func (dc *debugCollection) Replace(ctx context.Context, filter, doc bson.D) (err error) {
	start := time.Now()
	defer func() { dc.observe("replace", start, err) }()
	err = dc.c.Replace(ctx, filter, doc)
	return
}

func (dc *debugCollection) Update(ctx context.Context, filter, update bson.D, multi bool) (n int64, err error) {
	start := time.Now()
	defer func() { dc.observe("update", start, err) }()
	n, err = dc.c.Update(ctx, filter, update, multi)
	return
}

func (dc *debugCollection) Remove(ctx context.Context, filter bson.D) (n int64, err error) {
	start := time.Now()
	defer func() { dc.observe("remove", start, err) }()
	n, err = dc.c.Remove(ctx, filter)
	return
}

func (dc *debugCollection) Find(ctx context.Context, filter bson.D) (docs []any, err error) {
	start := time.Now()
	defer func() { dc.observe("find", start, err) }()
	docs, err = dc.c.Find(ctx, filter)
	return
}

func (dc *debugCollection) FindOne(ctx context.Context, filter bson.D, res any) (err error) {
	start := time.Now()
	defer func() { dc.observe("findOne", start, err) }()
	err = dc.c.FindOne(ctx, filter, res)
	return
}

func (dc *debugCollection) IndexInformation(ctx context.Context) (info map[string]IndexInfo, err error) {
	start := time.Now()
	defer func() { dc.observe("indexInformation", start, err) }()
	info, err = dc.c.IndexInformation(ctx)
	return
}

func (dc *debugCollection) CreateIndex(ctx context.Context, ix IndexInfo) (name string, err error) {
	start := time.Now()
	defer func() { dc.observe("createIndex", start, err) }()
	name, err = dc.c.CreateIndex(ctx, ix)
	return
}

// check interfaces
var (
	_ Collection           = (*debugCollection)(nil)
	_ prometheus.Collector = (*Metrics)(nil)
)
