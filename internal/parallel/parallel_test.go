package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  Config
	}{
		{"default", 1000, DefaultConfig()},
		{"sequential", 100, Sequential()},
		{"disabled", 100, Config{Enabled: false}},
		{"small chunk falls back", 10, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 64}},
		{"uneven chunks", 257, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}},
		{"empty", 0, DefaultConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.n)
			var counter int64
			For(tt.n, func(i int) {
				atomic.AddInt64(&counter, 1)
				atomic.AddInt32(&seen[i], 1)
			}, tt.cfg)

			assert.Equal(t, int64(tt.n), counter)
			for i, v := range seen {
				assert.Equal(t, int32(1), v, "index %d", i)
			}
		})
	}
}

func TestForBatch(t *testing.T) {
	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, Config{Enabled: true, NumWorkers: 3, MinChunkSize: 2})

	for b := range batch {
		for c := range channels {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}
