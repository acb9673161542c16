package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectorZeroRateNeverBlocks(t *testing.T) {
	r := NewReconnector(0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Wait(ctx))
	}
}

func TestReconnectorAllowConsumesBurst(t *testing.T) {
	r := NewReconnector(60, 2)

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestReconnectorReserveDelayReportsWait(t *testing.T) {
	r := NewReconnector(60, 1)
	assert.True(t, r.Allow())

	d := r.ReserveDelay()
	assert.Greater(t, d, time.Duration(0))
}

func TestReconnectorWaitRespectsContextCancellation(t *testing.T) {
	r := NewReconnector(1, 1)
	require.True(t, r.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.Error(t, err)
}
