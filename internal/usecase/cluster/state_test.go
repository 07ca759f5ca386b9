package cluster_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storywire/internal/domain/entity"
	"storywire/internal/usecase/cluster"
)

func TestStatusFor(t *testing.T) {
	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	window := time.Hour

	tests := []struct {
		name  string
		level int
		age   time.Duration
		want  entity.StoryStatus
	}{
		{"single source", 1, 0, entity.StatusMonitoring},
		{"single source stays monitoring when old", 1, 48 * time.Hour, entity.StatusMonitoring},
		{"two sources", 2, 5 * time.Minute, entity.StatusDeveloping},
		{"three sources in window", 3, 30 * time.Minute, entity.StatusBreaking},
		{"window boundary is inclusive", 3, time.Hour, entity.StatusBreaking},
		{"three sources after window", 3, time.Hour + time.Second, entity.StatusVerified},
		{"many sources after window", 8, 24 * time.Hour, entity.StatusVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cluster.StatusFor(tt.level, first, first.Add(tt.age), window))
		})
	}
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, 55, cluster.ConfidenceFor(1))
	assert.Equal(t, 70, cluster.ConfidenceFor(2))
	assert.Equal(t, 85, cluster.ConfidenceFor(3))
	assert.Equal(t, 99, cluster.ConfidenceFor(4))
	assert.Equal(t, 99, cluster.ConfidenceFor(20))
}
