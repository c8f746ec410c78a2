package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_Pending(t *testing.T) {
	fut := New[string]()
	require.False(t, fut.Settled())

	select {
	case <-fut.Done():
		t.Fatal("Done must not be closed while pending")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fut.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, fut.Settled(), "an abandoned wait must not settle the future")
}

func TestFuture_FirstSettlementWins(t *testing.T) {
	fut := New[int]()
	require.True(t, fut.Resolve(42))
	require.False(t, fut.Resolve(43))
	require.False(t, fut.Fail(errors.New("too late")))

	val, err := fut.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, val)
}

func TestFuture_Failed(t *testing.T) {
	cause := errors.New("connection refused")
	fut := Failed[int](cause)
	require.True(t, fut.Settled())

	select {
	case <-fut.Done():
	default:
		t.Fatal("Done must be closed on an already-failed future")
	}

	_, err := fut.Wait(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestFuture_Resolved(t *testing.T) {
	fut := Resolved("ok")
	require.True(t, fut.Settled())
	val, err := fut.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", val)
}

func TestFuture_WaitUnblocksOnSettle(t *testing.T) {
	fut := New[int]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		fut.Resolve(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	val, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, val)
}
