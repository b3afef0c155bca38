package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/testutil"
)

type fakeSweeper struct {
	report model.SweepReport
	err    error
	calls  int
}

func (f *fakeSweeper) Sweep(ctx context.Context) (model.SweepReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeProcessor struct {
	stats     model.ProcessStats
	err       error
	batchSize int
}

func (f *fakeProcessor) ProcessOutbox(ctx context.Context, batchSize int) (model.ProcessStats, error) {
	f.batchSize = batchSize
	return f.stats, f.err
}

func TestLivenessJob(t *testing.T) {
	sweeper := &fakeSweeper{report: model.SweepReport{Scanned: 3, EnteredGrace: 1}}
	job := LivenessJob(sweeper, 24*time.Hour, testutil.MakeNoopLogger())

	assert.Equal(t, "liveness", job.Name)
	assert.Equal(t, 24*time.Hour, job.Interval)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestOutboxJob(t *testing.T) {
	tests := []struct {
		name    string
		stats   model.ProcessStats
		err     error
		wantErr bool
	}{
		{name: "empty batch", stats: model.ProcessStats{}},
		{name: "processed", stats: model.ProcessStats{Fetched: 2, Processed: 2}},
		{name: "partial failure", stats: model.ProcessStats{Fetched: 2, Processed: 1, Failed: 1, DeadLettered: 1}},
		{name: "fetch error", err: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &fakeProcessor{stats: tt.stats, err: tt.err}
			job := OutboxJob(processor, 5*time.Second, 50, testutil.MakeNoopLogger())

			err := job.Run(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 50, processor.batchSize)
		})
	}
}
