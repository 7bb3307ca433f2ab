package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Many holders race for the same pair of seats; exactly one wins both and
// no seat ends up split between holders.
func TestSeatHolds_ContendedPair_Integration(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client, err := NewClient(ctx, getTestConfig())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.RegisterSeatScripts(ctx))

	fp := "test-herd-" + time.Now().Format("150405.000")
	seats := []string{"b1", "b2"}
	const contenders = 100

	cleanup := []string{SeatHoldKey(fp, "b1"), SeatHoldKey(fp, "b2")}
	for i := 0; i < contenders; i++ {
		cleanup = append(cleanup, HolderKey(fp, fmt.Sprintf("holder-%d", i)))
	}
	defer client.Del(ctx, cleanup...)

	var winners, held, failures int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.HoldSeats(ctx, fp, fmt.Sprintf("holder-%d", i), seats, time.Minute, 4)
			switch {
			case err != nil:
				atomic.AddInt32(&failures, 1)
			case res.OK:
				atomic.AddInt32(&winners, 1)
			case res.Code == "SEAT_HELD":
				atomic.AddInt32(&held, 1)
			default:
				atomic.AddInt32(&failures, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
	assert.Equal(t, int32(contenders-1), held)
	assert.Zero(t, failures)

	holders, err := client.SeatHolders(ctx, fp, seats)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, holders["b1"], holders["b2"])
}

// Holders each want a distinct seat; every one of them succeeds.
func TestSeatHolds_DisjointSeats_Integration(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client, err := NewClient(ctx, getTestConfig())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.RegisterSeatScripts(ctx))

	fp := "test-disjoint-" + time.Now().Format("150405.000")
	const seatsTotal = 50

	var cleanup []string
	for i := 0; i < seatsTotal; i++ {
		cleanup = append(cleanup, SeatHoldKey(fp, fmt.Sprintf("s%d", i)), HolderKey(fp, fmt.Sprintf("h%d", i)))
	}
	defer client.Del(ctx, cleanup...)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < seatsTotal; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.HoldSeats(ctx, fp, fmt.Sprintf("h%d", i), []string{fmt.Sprintf("s%d", i)}, time.Minute, 1)
			if err == nil && res.OK {
				atomic.AddInt32(&ok, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(seatsTotal), ok)
}
