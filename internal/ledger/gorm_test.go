package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ucp-transcoder/pkg/utils"
)

func newTestLedger(t *testing.T) (*GormLedger, *utils.MockClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	clock := utils.NewMockClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	led, err := NewGormLedger(db, clock)
	require.NoError(t, err)

	return led, clock
}

func TestGormLedger_StartRunAndGetRun(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	runUUID, err := led.StartRun(ctx, "/ckpt/in", "/ckpt/out", 4, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, runUUID)

	run, err := led.GetRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, "/ckpt/in", run.InputFolder)
	assert.Equal(t, "/ckpt/out", run.OutputFolder)
	assert.Equal(t, 4, run.ExtractWorkers)
	assert.Equal(t, RunStatusStarted, run.Status)
}

func TestGormLedger_RecordTopology(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	runUUID, err := led.StartRun(ctx, "/in", "/out", 1, 1)
	require.NoError(t, err)

	err = led.RecordTopology(ctx, runUUID, Topology{PipelineDegree: 2, TensorDegree: 4, DataDegree: 8})
	require.NoError(t, err)

	run, err := led.GetRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.PipelineDegree)
	assert.Equal(t, 4, run.TensorDegree)
	assert.Equal(t, 8, run.DataDegree)
	assert.Equal(t, RunStatusIndexed, run.Status)
}

func TestGormLedger_RecordTopology_UnknownRun(t *testing.T) {
	led, _ := newTestLedger(t)

	err := led.RecordTopology(context.Background(), "does-not-exist", Topology{})
	assert.Error(t, err)
}

func TestGormLedger_AdvancePhaseAndComplete(t *testing.T) {
	led, clock := newTestLedger(t)
	ctx := context.Background()

	runUUID, err := led.StartRun(ctx, "/in", "/out", 1, 1)
	require.NoError(t, err)

	require.NoError(t, led.AdvancePhase(ctx, runUUID, RunStatusExtracted))
	require.NoError(t, led.AdvancePhase(ctx, runUUID, RunStatusMerged))

	clock.Advance(5 * time.Minute)
	require.NoError(t, led.CompleteRun(ctx, runUUID))

	run, err := led.GetRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.EndTime)
	assert.True(t, run.EndTime.After(run.StartTime))
}

func TestGormLedger_FailRun(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	runUUID, err := led.StartRun(ctx, "/in", "/out", 1, 1)
	require.NoError(t, err)

	require.NoError(t, led.FailRun(ctx, runUUID, assert.AnError))

	run, err := led.GetRun(ctx, runUUID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, assert.AnError.Error(), run.FailureMessage)
}

func TestGormLedger_ListRuns(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := led.StartRun(ctx, "/in", "/out", 1, 1)
		require.NoError(t, err)
	}

	runs, err := led.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
