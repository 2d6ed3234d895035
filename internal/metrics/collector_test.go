package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTimingAggregates(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpDetectExact, 10*time.Millisecond)
	c.RecordTiming(OpDetectExact, 30*time.Millisecond)

	snap := c.Snapshot()
	op := snap.Operations[OpDetectExact]
	require.NotNil(t, op)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(40), op.TotalTimeMs)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
	assert.InDelta(t, 20.0, op.AvgTimeMs, 0.01)
}

func TestSnapshotOmitsEmptyOperations(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpCluster, time.Millisecond)

	snap := c.Snapshot()
	assert.Contains(t, snap.Operations, OpCluster)
	assert.NotContains(t, snap.Operations, OpFuse)
}

func TestPairCounters(t *testing.T) {
	c := NewCollector()
	c.RecordPairScored(false)
	c.RecordPairScored(true)
	c.RecordPairScored(true)
	c.RecordAbstention()
	c.RecordPairError()

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Pairs.PairsScored)
	assert.Equal(t, int64(2), snap.Pairs.CacheHits)
	assert.Equal(t, int64(1), snap.Pairs.Abstentions)
	assert.Equal(t, int64(1), snap.Pairs.Errors)
}

func TestOpDetectName(t *testing.T) {
	assert.Equal(t, OpDetectFuzzy, OpDetect("fuzzy"))
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.RecordTiming(OpDBQuery, time.Millisecond)
				c.RecordPairScored(true)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(800), snap.Operations[OpDBQuery].Count)
	assert.Equal(t, int64(800), snap.Pairs.PairsScored)
}
