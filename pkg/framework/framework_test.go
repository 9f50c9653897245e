package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) ctl(name string, changed bool) Controller {
	return ControlFunc(func(ctx ControlContext) error {
		r.calls = append(r.calls, name)
		if changed {
			ctx.MarkChanged()
		}
		return nil
	})
}

func TestLoopStepOrder(t *testing.T) {
	var r recorder
	l := NewLoop()
	l.AddController(PrLvPostProc, r.ctl("post", false))
	l.AddController(PrLvSense, r.ctl("sense", false))
	l.AddController(PrLvAcuate, r.ctl("acuate", false))
	l.PreRunAt(PrLvAcuate, r.ctl("pre", false))
	l.PostRunAt(PrLvSense, r.ctl("hook", false))

	require.False(t, l.Step(context.Background()))
	require.Equal(t, []string{"sense", "hook", "pre", "acuate", "post"}, r.calls)

	// hooks are one-shot
	r.calls = nil
	l.Step(context.Background())
	require.Equal(t, []string{"sense", "acuate", "post"}, r.calls)
	require.Equal(t, uint64(2), l.Iterations())
}

func TestLoopChanged(t *testing.T) {
	var r recorder
	var seen []bool
	l := NewLoop()
	changed := false
	l.AddController(PrLvAcuate, ControlFunc(func(ctx ControlContext) error {
		if changed {
			ctx.MarkChanged()
		}
		return nil
	}))
	l.AddController(PrLvPostProc, ControlFunc(func(ctx ControlContext) error {
		seen = append(seen, ctx.Changed())
		return nil
	}))
	l.AddController(PrLvIdle, r.ctl("idle", false))

	require.False(t, l.Step(context.Background()))
	changed = true
	require.True(t, l.Step(context.Background()))
	require.Equal(t, []bool{false, true}, seen)
}

func TestLoopContext(t *testing.T) {
	now := time.Unix(100, 0)
	l := NewLoop()
	l.Now = func() time.Time { return now }
	var got []uint64
	l.AddController(PrLvControl, ControlFunc(func(ctx ControlContext) error {
		require.Equal(t, PrLvControl, ctx.PriorityLevel())
		require.Equal(t, now, ctx.Time())
		require.NotNil(t, LoopCtlFrom(ctx.Context()))
		got = append(got, ctx.Iteration())
		if ctx.Iteration() == 1 {
			ctx.PostRun(ControlFunc(func(ControlContext) error {
				return errors.New("logged and ignored")
			}))
		}
		return nil
	}))
	l.Step(context.Background())
	l.Step(context.Background())
	require.Equal(t, []uint64{1, 2}, got)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	l.AddController(PrLvAcuate, ControlFunc(func(ctx ControlContext) error {
		if ctx.Iteration() >= 3 {
			cancel()
		}
		return nil
	}))
	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, l.Iterations(), uint64(3))
}

func TestLoopRunStopsOnRunnerError(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	failure := errors.New("port closed")
	l.AddRunnable(NamedRun("failing", RunFunc(func(ctx context.Context) error {
		return failure
	})))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	err := l.Run(context.Background())
	require.ErrorIs(t, err, failure)
}

func TestLoopTriggerNext(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	l.AddController(PrLvAcuate, ControlFunc(func(ctx ControlContext) error {
		if ctx.Iteration() < 3 {
			ctx.TriggerNext()
		} else {
			cancel()
		}
		return nil
	}))
	l.TriggerNext()
	require.ErrorIs(t, l.Run(ctx), context.Canceled)
	require.Equal(t, uint64(3), l.Iterations())
}

func TestRunnerWait(t *testing.T) {
	r := NewRunner()
	r.Go(RunFunc(func(context.Context) error { return nil }))
	r.Go(RunFunc(func(context.Context) error { return context.Canceled }))
	require.NoError(t, r.Wait())

	e1, e2 := errors.New("e1"), errors.New("e2")
	r = NewRunner()
	r.Go(RunFunc(func(context.Context) error { return e1 }))
	r.Go(RunFunc(func(context.Context) error { return e2 }))
	err := r.Wait()
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	require.Contains(t, err.Error(), "Multiple errors:")
}

type testCloser struct {
	closed int
}

func (c *testCloser) Close() error {
	c.closed++
	return nil
}

func TestCloseOnExit(t *testing.T) {
	c := &testCloser{}
	err := CloseOnExit(RunFunc(func(context.Context) error { return nil }), c).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, c.closed)

	c = &testCloser{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = CloseOnExit(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), c).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, c.closed)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	e := errors.New("single")
	err := errs.Add(e).Aggregate()
	require.Equal(t, "single", err.Error())
}
