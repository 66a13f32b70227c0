package bitmask_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skysql-gw/dcbcore/internal/bitmask"
)

func TestSetBasic(t *testing.T) {
	var s bitmask.Set
	assert.True(t, s.IsAllClear())

	s.SetWorker(0)
	s.SetWorker(2)
	snap := s.Snapshot()
	assert.True(t, snap.IsSet(0))
	assert.False(t, snap.IsSet(1))
	assert.True(t, snap.IsSet(2))
	assert.Equal(t, 2, snap.Count())

	s.ClearWorker(0)
	assert.False(t, s.IsAllClear())
	s.ClearWorker(2)
	assert.True(t, s.IsAllClear())
}

func TestSetAssignIsSnapshotOfPriorLiveSet(t *testing.T) {
	var live bitmask.Set
	live.SetWorker(0)
	live.SetWorker(1)
	live.SetWorker(2)

	var dcbMask bitmask.Set
	dcbMask.Assign(live.Snapshot())

	// Workers may keep joining/leaving the live set; the DCB's copy must
	// not be affected (invariant: the mask is set exactly once).
	live.SetWorker(3)
	live.ClearWorker(0)

	snap := dcbMask.Snapshot()
	assert.True(t, snap.IsSet(0))
	assert.True(t, snap.IsSet(1))
	assert.True(t, snap.IsSet(2))
	assert.False(t, snap.IsSet(3))
}

func TestClearWorkerConcurrentOnlyDecreases(t *testing.T) {
	var s bitmask.Set
	for i := 0; i < bitmask.MaxWorkers; i++ {
		s.SetWorker(i)
	}

	var wg sync.WaitGroup
	for i := 0; i < bitmask.MaxWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.ClearWorker(id)
		}(i)
	}
	wg.Wait()
	assert.True(t, s.IsAllClear())
}

func TestIsSetOutOfRange(t *testing.T) {
	var snap bitmask.Snapshot
	assert.False(t, snap.IsSet(-1))
	assert.False(t, snap.IsSet(bitmask.MaxWorkers))
}
