package slo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestUpdateFeedAvailability(t *testing.T) {
	tests := []struct {
		name     string
		answered int
		polled   int
		start    float64
		want     float64
	}{
		{name: "all answered", answered: 10, polled: 10, start: 0, want: 1},
		{name: "partial", answered: 3, polled: 4, start: 0, want: 0.75},
		{name: "nothing polled keeps previous value", answered: 0, polled: 0, start: 0.5, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SLOFeedAvailability.Set(tt.start)
			UpdateFeedAvailability(tt.answered, tt.polled)
			if got := gaugeValue(t, SLOFeedAvailability); got != tt.want {
				t.Errorf("SLOFeedAvailability = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkCycleSucceeded(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	MarkCycleSucceeded(at)

	if got := gaugeValue(t, SLOLastSuccessfulCycle); got != float64(at.Unix()) {
		t.Errorf("SLOLastSuccessfulCycle = %v, want %v", got, float64(at.Unix()))
	}
}

func TestUpdateClusteringLag(t *testing.T) {
	UpdateClusteringLag(42)

	if got := gaugeValue(t, SLOClusteringLag); got != 42 {
		t.Errorf("SLOClusteringLag = %v, want 42", got)
	}
}
