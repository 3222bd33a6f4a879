package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhaneshkk/prolog-service/internal/admission"
	"github.com/dhaneshkk/prolog-service/internal/runner"
	"github.com/dhaneshkk/prolog-service/pkg/engine"
	"github.com/dhaneshkk/prolog-service/pkg/engine/enginetest"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
)

func newDispatcher(budget int, eng engine.Engine) (*Dispatcher, *admission.Controller) {
	ctrl := admission.NewController(budget)
	r := runner.New(eng, logger.NewNoopLogger())
	return New(ctrl, r, logger.NewNoopLogger()), ctrl
}

func TestDispatchReturnsEntries(t *testing.T) {
	eng := enginetest.Succeed(engine.Outcome{Kind: engine.OutcomeTrue})
	d, _ := newDispatcher(1, eng)

	entries, err := d.Dispatch(context.Background(), "", "true.")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runner.Entry{"result": true}, entries[0])
}

func TestPermitReleasedOnEveryExitPath(t *testing.T) {
	tests := []struct {
		name    string
		handler enginetest.HandlerFunc
	}{
		{
			name: "success",
			handler: func(string, string) ([]engine.Outcome, error) {
				return []engine.Outcome{{Kind: engine.OutcomeTrue}}, nil
			},
		},
		{
			name: "runner_error",
			handler: func(string, string) ([]engine.Outcome, error) {
				return nil, errors.New("broken")
			},
		},
		{
			name: "panic",
			handler: func(string, string) ([]engine.Outcome, error) {
				panic("interpreter blew up")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ctrl := newDispatcher(1, &enginetest.Engine{Handler: tt.handler})

			// with a budget of one, a leaked permit would deadlock the
			// second dispatch
			for i := 0; i < 3; i++ {
				_, _ = d.Dispatch(context.Background(), "", "q.")
			}

			permit, ok := ctrl.TryAcquire()
			require.True(t, ok, "permit was not returned to the pool")
			permit.Release()
		})
	}
}

func TestPanicBecomesErrorPayload(t *testing.T) {
	eng := &enginetest.Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		panic("interpreter blew up")
	}}
	d, _ := newDispatcher(1, eng)

	entries, err := d.Dispatch(context.Background(), "", "q.")
	require.Error(t, err)
	assert.Nil(t, entries)
	assert.Contains(t, err.Error(), "interpreter blew up")
}

func TestConcurrencyNeverExceedsBudget(t *testing.T) {
	const budget = 2
	const callers = 8

	var inFlight atomic.Int64
	var peak atomic.Int64

	eng := &enginetest.Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		now := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return []engine.Outcome{{Kind: engine.OutcomeTrue}}, nil
	}}

	d, _ := newDispatcher(budget, eng)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), "", "slow.")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(budget))
	assert.Positive(t, peak.Load())
}

func TestAdmissionFailureWhenContextEnds(t *testing.T) {
	block := make(chan struct{})
	eng := &enginetest.Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		<-block
		return []engine.Outcome{{Kind: engine.OutcomeTrue}}, nil
	}}
	d, _ := newDispatcher(1, eng)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), "", "slow.")
	}()

	// wait until the single permit is held
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_, err := d.Dispatch(ctx, "", "q.")
		return errors.Is(err, admission.ErrUnavailable)
	}, time.Second, 5*time.Millisecond)

	close(block)
	wg.Wait()
}

func TestEvaluationOutlivesCallerContext(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})
	eng := &enginetest.Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		close(finished)
		return []engine.Outcome{{Kind: engine.OutcomeTrue}}, nil
	}}
	d, _ := newDispatcher(1, eng)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	entries, err := d.Dispatch(ctx, "", "slow.")

	// cancellation after admission does not interrupt the evaluation
	require.NoError(t, err)
	require.Len(t, entries, 1)
	select {
	case <-finished:
	default:
		t.Fatal("dispatch returned before the evaluation finished")
	}
}
