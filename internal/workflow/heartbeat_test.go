package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/testsupport"
	"checkrecon/internal/workflow"
)

func TestAdoptStaleTakesAbandonedBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustInsertRecords(t, store, 2)
	batch, _ := testsupport.MustClaim(t, store, 2)

	fresh := workflow.NewHeartbeatMonitor(store, logging.NewNop(), time.Second, time.Hour)
	adopted, err := fresh.AdoptStale(context.Background(), logging.NewNop())
	require.NoError(t, err)
	assert.Empty(t, adopted, "a live batch is not stale")

	time.Sleep(20 * time.Millisecond)
	monitor := workflow.NewHeartbeatMonitor(store, logging.NewNop(), time.Second, 5*time.Millisecond)
	adopted, err = monitor.AdoptStale(context.Background(), logging.NewNop())
	require.NoError(t, err)
	require.Len(t, adopted, 1)
	assert.Equal(t, batch.ID, adopted[0].ID)
}

func TestHeartbeatLoopTouchesBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustInsertRecords(t, store, 1)
	batch, _ := testsupport.MustClaim(t, store, 1)
	before := *batch.HeartbeatAt

	monitor := workflow.NewHeartbeatMonitor(store, logging.NewNop(), 10*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go monitor.StartLoop(ctx, &wg, batch.ID)

	deadline := time.Now().Add(5 * time.Second)
	var current *records.Batch
	for time.Now().Before(deadline) {
		var err error
		current, err = store.GetBatch(context.Background(), batch.ID)
		require.NoError(t, err)
		if current.HeartbeatAt != nil && current.HeartbeatAt.After(before) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	wg.Wait()
	require.NotNil(t, current.HeartbeatAt)
	assert.True(t, current.HeartbeatAt.After(before), "heartbeat was not refreshed")
}
