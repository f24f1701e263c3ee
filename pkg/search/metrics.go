package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for search passes.
var (
	tracer = otel.Tracer("gsta.search")
	meter  = otel.Meter("gsta.search")
)

var (
	tagsCreated      metric.Int64Counter
	clkInfosCreated  metric.Int64Counter
	tagGroupsCreated metric.Int64Counter
	passLatency      metric.Float64Histogram
	verticesVisited  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		tagsCreated, err = meter.Int64Counter(
			"search_tags_created_total",
			metric.WithDescription("Number of tags interned"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		clkInfosCreated, err = meter.Int64Counter(
			"search_clk_infos_created_total",
			metric.WithDescription("Number of clock infos interned"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tagGroupsCreated, err = meter.Int64Counter(
			"search_tag_groups_created_total",
			metric.WithDescription("Number of tag groups interned"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		passLatency, err = meter.Float64Histogram(
			"search_pass_duration_seconds",
			metric.WithDescription("Duration of arrival and required passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verticesVisited, err = meter.Int64Counter(
			"search_vertices_visited_total",
			metric.WithDescription("Number of vertex visits by search passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// searchMetrics counts interning events of one Search. Counts are kept
// locally and flushed to the meter at the end of each pass.
type searchMetrics struct {
	mu        sync.Mutex
	tags      int64
	clkInfos  int64
	tagGroups int64
}

func (m *searchMetrics) tagCreated() {
	m.mu.Lock()
	m.tags++
	m.mu.Unlock()
}

func (m *searchMetrics) clkInfoCreated() {
	m.mu.Lock()
	m.clkInfos++
	m.mu.Unlock()
}

func (m *searchMetrics) tagGroupCreated() {
	m.mu.Lock()
	m.tagGroups++
	m.mu.Unlock()
}

// flush records the counts of a pass and resets them.
func (m *searchMetrics) flush(ctx context.Context, pass string, duration time.Duration, visited int) {
	m.mu.Lock()
	tags, clkInfos, tagGroups := m.tags, m.clkInfos, m.tagGroups
	m.tags, m.clkInfos, m.tagGroups = 0, 0, 0
	m.mu.Unlock()

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pass", pass))
	tagsCreated.Add(ctx, tags, attrs)
	clkInfosCreated.Add(ctx, clkInfos, attrs)
	tagGroupsCreated.Add(ctx, tagGroups, attrs)
	passLatency.Record(ctx, duration.Seconds(), attrs)
	verticesVisited.Add(ctx, int64(visited), attrs)
}
