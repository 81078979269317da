package refbase

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for lifecycle transitions. Plain increments and
// decrements are never recorded, only the transitions they cause.
var meter = otel.Meter("github.com/rnkv/refbase-go")

var (
	objectsDestroyed   metric.Int64Counter
	countersFreed      metric.Int64Counter
	promotions         metric.Int64Counter
	contractViolations metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error

	promotionSucceeded = metric.WithAttributeSet(attribute.NewSet(attribute.Bool("success", true)))
	promotionFailed    = metric.WithAttributeSet(attribute.NewSet(attribute.Bool("success", false)))
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		objectsDestroyed, err = meter.Int64Counter(
			"refbase_objects_destroyed_total",
			metric.WithDescription("Total number of managed objects destroyed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		countersFreed, err = meter.Int64Counter(
			"refbase_counters_freed_total",
			metric.WithDescription("Total number of shared counters released"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		promotions, err = meter.Int64Counter(
			"refbase_promotions_total",
			metric.WithDescription("Total number of weak to strong promotion attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		contractViolations, err = meter.Int64Counter(
			"refbase_contract_violations_total",
			metric.WithDescription("Total number of handle protocol violations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordDestroyed() {
	if err := initMetrics(); err != nil {
		return
	}
	objectsDestroyed.Add(context.Background(), 1)
}

func recordFreed() {
	if err := initMetrics(); err != nil {
		return
	}
	countersFreed.Add(context.Background(), 1)
}

func recordPromotion(success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if success {
		promotions.Add(context.Background(), 1, promotionSucceeded)
		return
	}
	promotions.Add(context.Background(), 1, promotionFailed)
}

func recordViolation(kind violation) {
	if err := initMetrics(); err != nil {
		return
	}
	contractViolations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(kind))),
	)
}
