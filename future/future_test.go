package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestNew_Success(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Success(42)
	}()

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestNew_Error(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Failure(errTest)
	}()

	result, err := fut.Await()

	require.ErrorIs(t, err, errTest)
	assert.Equal(t, 0, result)
}

func TestPromise_OnlyFirstSettlementWins(t *testing.T) {
	t.Parallel()

	fut, promise := New[string]()

	promise.Success("first")
	promise.Failure(errTest)
	promise.Complete("third", nil)

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, "first", result)
	assert.Same(t, fut, promise.Future())
}

func TestCompletedAndFailed(t *testing.T) {
	t.Parallel()

	ok := Completed("v")
	assert.True(t, ok.IsDone())

	val, err := ok.Await()
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	bad := Failed[string](errTest)
	assert.True(t, bad.IsDone())

	_, err = bad.Await()
	require.ErrorIs(t, err, errTest)
}

func TestGo_RecoversPanic(t *testing.T) {
	t.Parallel()

	fut := Go(func() (int, error) {
		panic("boom")
	})

	_, err := fut.Await()

	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "boom")
}

func TestGo_RecoversPanicWithError(t *testing.T) {
	t.Parallel()

	fut := Go(func() (int, error) {
		panic(errTest)
	})

	_, err := fut.Await()

	require.ErrorIs(t, err, ErrPanic)
	require.ErrorIs(t, err, errTest)
}

func TestAwaitContext_Timeout(t *testing.T) {
	t.Parallel()

	fut, _ := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := fut.AwaitContext(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, fut.IsDone())
}

func TestGoContext_Cancel(t *testing.T) {
	t.Parallel()

	fut := GoContext(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()

		return 0, ctx.Err()
	})

	fut.Cancel()
	fut.Cancel()

	_, err := fut.Await()

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, fut.IsCanceled())
}

func TestOnResult_BeforeAndAfterSettlement(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	var wg sync.WaitGroup

	wg.Add(2)

	got := make(chan int, 2)

	fut.OnResult(func(v int, err error) {
		defer wg.Done()

		assert.NoError(t, err)
		got <- v
	})

	promise.Success(7)

	fut.OnResult(func(v int, err error) {
		defer wg.Done()

		assert.NoError(t, err)
		got <- v
	})

	wg.Wait()
	close(got)

	for v := range got {
		assert.Equal(t, 7, v)
	}
}

func TestOnSuccessAndOnError(t *testing.T) {
	t.Parallel()

	success := make(chan int, 1)
	failure := make(chan error, 1)

	Completed(3).OnSuccess(func(v int) { success <- v })
	Failed[int](errTest).OnError(func(err error) { failure <- err })

	select {
	case v := <-success:
		assert.Equal(t, 3, v)
	case <-time.After(time.Second):
		t.Fatal("OnSuccess callback was not invoked")
	}

	select {
	case err := <-failure:
		require.ErrorIs(t, err, errTest)
	case <-time.After(time.Second):
		t.Fatal("OnError callback was not invoked")
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	doubled := Map(Completed(21), func(v int) (int, error) { return v * 2, nil })

	val, err := doubled.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	called := false
	failed := Map(Failed[int](errTest), func(v int) (int, error) {
		called = true

		return v, nil
	})

	_, err = failed.Await()
	require.ErrorIs(t, err, errTest)
	assert.False(t, called)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	pool := pond.NewPool(2)
	defer pool.StopAndWait()

	fut := Submit(pool, func() (string, error) { return "pooled", nil })

	val, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, "pooled", val)
}

func TestSubmit_StoppedPool(t *testing.T) {
	t.Parallel()

	pool := pond.NewPool(1)
	pool.StopAndWait()

	_, err := Submit(pool, func() (string, error) { return "never", nil }).Await()

	require.Error(t, err)
}
