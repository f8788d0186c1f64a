package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeLockerLocalFallback(t *testing.T) {
	locker := NewTradeLocker(nil, 5*time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "t-1", "u-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "t-1", "u-1")
	require.ErrorIs(t, err, ErrTradeInProgress, "second trade fails fast")
	assert.Equal(t, KindConflict, KindOf(err))

	other, err := locker.Acquire(ctx, "t-1", "u-2")
	require.NoError(t, err, "other users are independent")
	other()

	elsewhere, err := locker.Acquire(ctx, "t-2", "u-1")
	require.NoError(t, err, "other tournaments are independent")
	elsewhere()

	release()
	again, err := locker.Acquire(ctx, "t-1", "u-1")
	require.NoError(t, err)
	again()
}
