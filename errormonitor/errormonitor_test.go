// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package errormonitor

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		WindowDuration:    time.Minute,
		MinimumSamples:    4,
		AlertThreshold:    0.3,
		CriticalThreshold: 0.6,
	}
}

func TestMonitorNormalBelowMinimumSamples(t *testing.T) {
	m := New("svc", testConfig(), nil)
	m.RecordFailure(errors.New("boom"))
	if m.AlertLevel() != Normal {
		t.Fatalf("want Normal got %v", m.AlertLevel())
	}
}

func TestMonitorTransitionsToWarningThenCritical(t *testing.T) {
	var transitions []AlertLevel
	m := New("svc", testConfig(), func(name string, from, to AlertLevel) {
		transitions = append(transitions, to)
	})

	// 4 samples, 2 failures -> error_rate 0.5 >= alert(0.3) -> Warning.
	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordFailure(errors.New("x"))
	m.RecordFailure(errors.New("x"))
	if m.AlertLevel() != Warning {
		t.Fatalf("want Warning got %v (metrics=%+v)", m.AlertLevel(), m.Metrics())
	}

	// push error rate to >= 0.6 -> Critical.
	m.RecordFailure(errors.New("x"))
	m.RecordFailure(errors.New("x"))
	if m.AlertLevel() != Critical {
		t.Fatalf("want Critical got %v (metrics=%+v)", m.AlertLevel(), m.Metrics())
	}

	if len(transitions) == 0 || transitions[len(transitions)-1] != Critical {
		t.Fatalf("expected alert callback to report Critical, got %v", transitions)
	}
}

func TestMonitorTrendRequiresTwentySamples(t *testing.T) {
	m := New("svc", testConfig(), nil)
	for i := 0; i < 19; i++ {
		m.RecordSuccess()
	}
	if m.Trend() != Stable {
		t.Fatalf("want Stable with <20 samples, got %v", m.Trend())
	}
}

func TestMonitorTrendDetectsIncrease(t *testing.T) {
	m := New("svc", testConfig(), nil)
	for i := 0; i < 10; i++ {
		m.RecordSuccess()
	}
	for i := 0; i < 10; i++ {
		m.RecordFailure(errors.New("x"))
	}
	if got := m.Trend(); got != Increasing {
		t.Fatalf("want Increasing got %v", got)
	}
}

func TestRegistryAggregateSumsAcrossMonitors(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("a", testConfig(), nil)
	b := r.GetOrCreate("b", testConfig(), nil)

	a.RecordFailure(errors.New("x"))
	a.RecordSuccess()
	b.RecordFailure(errors.New("x"))

	agg := r.Aggregate()
	if agg.Total != 3 || agg.Failed != 2 {
		t.Fatalf("got %+v", agg)
	}
}
