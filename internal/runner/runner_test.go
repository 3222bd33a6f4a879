package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dhaneshkk/prolog-service/pkg/engine"
	"github.com/dhaneshkk/prolog-service/pkg/engine/enginetest"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
)

func TestOneEntryPerOutcomeInOrder(t *testing.T) {
	eng := enginetest.Succeed(
		engine.Outcome{Kind: engine.OutcomeSolution, Bindings: []engine.Binding{{Name: "X", Term: engine.NewInteger(1)}}},
		engine.Outcome{Kind: engine.OutcomeSolution, Bindings: []engine.Binding{{Name: "X", Term: engine.NewInteger(2)}}},
		engine.Outcome{Kind: engine.OutcomeSolution, Bindings: []engine.Binding{{Name: "X", Term: engine.NewInteger(3)}}},
	)
	r := New(eng, logger.NewNoopLogger())

	entries, err := r.Run(context.Background(), "fact(1). fact(2). fact(3).", "fact(X).")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{"X": "1"}, entries[0])
	assert.Equal(t, Entry{"X": "2"}, entries[1])
	assert.Equal(t, Entry{"X": "3"}, entries[2])
}

func TestPlainSuccessAndFailure(t *testing.T) {
	tests := []struct {
		name     string
		outcome  engine.Outcome
		expected Entry
	}{
		{
			name:     "true_yields_result_true",
			outcome:  engine.Outcome{Kind: engine.OutcomeTrue},
			expected: Entry{"result": true},
		},
		{
			name:     "fail_yields_result_false",
			outcome:  engine.Outcome{Kind: engine.OutcomeFalse},
			expected: Entry{"result": false},
		},
		{
			name:     "exception_yields_encoded_term",
			outcome:  engine.Outcome{Kind: engine.OutcomeException, Exception: engine.Atom("my_error")},
			expected: Entry{"exception": "my_error"},
		},
		{
			name:     "engine_error_yields_inline_error",
			outcome:  engine.Outcome{Kind: engine.OutcomeError, Diagnostic: "resource exhausted"},
			expected: Entry{"error": "resource exhausted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(enginetest.Succeed(tt.outcome), logger.NewNoopLogger())

			entries, err := r.Run(context.Background(), "", "q.")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.expected, entries[0])
		})
	}
}

func TestInlineErrorDoesNotStopIteration(t *testing.T) {
	eng := enginetest.Succeed(
		engine.Outcome{Kind: engine.OutcomeSolution, Bindings: []engine.Binding{{Name: "X", Term: engine.Atom("a")}}},
		engine.Outcome{Kind: engine.OutcomeError, Diagnostic: "hiccup"},
		engine.Outcome{Kind: engine.OutcomeSolution, Bindings: []engine.Binding{{Name: "X", Term: engine.Atom("b")}}},
	)
	r := New(eng, logger.NewNoopLogger())

	entries, err := r.Run(context.Background(), "", "q.")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{"X": "a"}, entries[0])
	assert.Equal(t, Entry{"error": "hiccup"}, entries[1])
	assert.Equal(t, Entry{"X": "b"}, entries[2])
}

func TestContextConstructionFailureIsTopLevel(t *testing.T) {
	eng := &enginetest.Engine{NewContextErr: errors.New("out of memory")}
	r := New(eng, logger.NewNoopLogger())

	_, err := r.Run(context.Background(), "", "true.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestQueryStartFailureIsTopLevel(t *testing.T) {
	eng := &enginetest.Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		return nil, errors.New("syntax error")
	}}
	r := New(eng, logger.NewNoopLogger())

	_, err := r.Run(context.Background(), "", "][")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestContextIsDiscardedAfterRun(t *testing.T) {
	eng := enginetest.Succeed(engine.Outcome{Kind: engine.OutcomeTrue})
	r := New(eng, logger.NewNoopLogger())

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), "", "true.")
		require.NoError(t, err)
	}

	// a fresh context per run, none left alive
	assert.Equal(t, 3, eng.ContextsCreated())
	assert.Equal(t, 0, eng.ActiveContexts())
}

func TestContextCloseFailureIsLogged(t *testing.T) {
	eng := enginetest.Succeed(engine.Outcome{Kind: engine.OutcomeTrue})
	eng.CloseErr = errors.New("interpreter teardown failed")
	l, logs := logger.NewObserverLogger("warn")
	r := New(eng, l)

	entries, err := r.Run(context.Background(), "", "true.")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "failed to close evaluation context", entry.Message)
	assert.Equal(t, "interpreter teardown failed", entry.ContextMap()["error"])
}

func TestNoOutcomesYieldsEmptyEntries(t *testing.T) {
	r := New(enginetest.Succeed(), logger.NewNoopLogger())

	entries, err := r.Run(context.Background(), "", "q.")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
