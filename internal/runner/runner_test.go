package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"expectkit/internal/expect"
	"expectkit/internal/fixture"
	"expectkit/internal/promise"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCheck_PassAndFail(t *testing.T) {
	r := New(expect.New())
	ctx := context.Background()

	ok := r.Check(ctx, fixture.Check{Name: "eq", Subject: 3, Assertion: "to equal", Args: []any{3}})
	assert.True(t, ok.Passed)
	assert.Equal(t, "to equal", ok.Phrase)
	assert.Empty(t, ok.Message)

	bad := r.Check(ctx, fixture.Check{Name: "neq", Subject: 3, Assertion: "to equal", Args: []any{4}})
	assert.False(t, bad.Passed)
	assert.Equal(t, "expected 3 to equal 4", bad.Message)
}

func TestCheck_UsageErrorsFail(t *testing.T) {
	r := New(expect.New())
	res := r.Check(context.Background(), fixture.Check{Name: "typo", Subject: 1, Assertion: "to equl", Args: []any{1}})
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "to equl")
}

func TestCheck_Skip(t *testing.T) {
	r := New(expect.New())
	res := r.Check(context.Background(), fixture.Check{Name: "later", Subject: 1, Assertion: "to be false", Skip: true})
	assert.True(t, res.Passed)
	assert.Equal(t, "skipped", res.Message)
}

func TestCheck_Timeout(t *testing.T) {
	inst := expect.New()
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, inst.AddAssertion("<any> to eventually hold", func(c *expect.Context) (any, error) {
		return promise.Go(func() (any, error) {
			<-release
			return nil, nil
		}), nil
	}))

	r := New(inst, WithTimeout(20*time.Millisecond))
	res := r.Check(context.Background(), fixture.Check{Name: "slow", Subject: 1, Assertion: "to eventually hold"})
	assert.False(t, res.Passed)
	assert.Equal(t, "timed out after 20ms", res.Message)
}

func TestRun_KeepsOrderAndCounts(t *testing.T) {
	s := &fixture.Suite{
		Name:   "mixed",
		Source: "mixed.yaml",
		Checks: []fixture.Check{
			{Name: "a", Subject: "abc", Assertion: "to have length", Args: []any{3}},
			{Name: "b", Subject: []any{1, 2}, Assertion: "to contain", Args: []any{3}},
			{Name: "c", Subject: true, Assertion: "to be true"},
		},
	}
	run, err := New(expect.New(), WithConcurrency(2)).Run(context.Background(), s)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "suite", run.Command)
	assert.Equal(t, "mixed.yaml", run.Source)
	assert.Equal(t, 2, run.Passed)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{run.Results[0].Name, run.Results[1].Name, run.Results[2].Name})
	assert.False(t, run.Results[1].Passed)
}

func TestRun_ChecksAreIsolated(t *testing.T) {
	base := expect.New()
	var calls atomic.Int32
	require.NoError(t, base.Hook(func(next expect.Dispatch) expect.Dispatch {
		return func(subject any, phrase string, args ...any) (any, error) {
			calls.Add(1)
			return next(subject, phrase, args...)
		}
	}))

	s := &fixture.Suite{Name: "iso"}
	for range 8 {
		s.Checks = append(s.Checks, fixture.Check{Name: "n", Subject: 1, Assertion: "to be", Args: []any{1}})
	}
	run, err := New(base, WithConcurrency(4)).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 8, run.Passed)
	assert.Equal(t, int32(8), calls.Load())
	assert.False(t, base.Frozen())
}

func TestRun_SuiteOverrides(t *testing.T) {
	inst := expect.New()
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, inst.AddAssertion("<any> to hang", func(c *expect.Context) (any, error) {
		return promise.Go(func() (any, error) {
			<-release
			return nil, nil
		}), nil
	}))

	s := &fixture.Suite{
		Name:        "slow",
		Concurrency: 1,
		Timeout:     10 * time.Millisecond,
		Checks:      []fixture.Check{{Name: "h", Subject: 1, Assertion: "to hang"}},
	}
	run, err := New(inst).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "timed out after 10ms", run.Results[0].Message)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fixture.Suite{Name: "c", Checks: []fixture.Check{{Name: "x", Subject: 1, Assertion: "to be ok"}}}
	run, err := New(expect.New()).Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "not run", run.Results[0].Message)
	assert.Equal(t, 1, run.Failed)
}
