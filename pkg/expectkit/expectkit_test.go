package expectkit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expectkit/pkg/expectkit"
)

func TestPublicSurface(t *testing.T) {
	e := expectkit.New()
	ctx := context.Background()

	require.NoError(t, e.Expect(ctx, expectkit.Object("a", 1, "b", 2), "to satisfy", expectkit.Object("a", 1)))

	err := e.Expect(ctx, 1, "to equal", 2)
	assert.True(t, errors.Is(err, expectkit.ErrAssertionFailed))

	var af *expectkit.AssertionFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "expected 1 to equal 2", af.Error())
}

func TestPublicSurface_Extension(t *testing.T) {
	e := expectkit.New().Clone()
	require.NoError(t, e.AddAssertion("<number> to be even", func(c *expectkit.Context) (any, error) {
		n, _ := c.Subject.(int)
		return nil, c.Verify(n%2 == 0)
	}))

	expectkit.Assert(t, e, 4, "to be even")
	assert.Error(t, e.Expect(context.Background(), 3, "to be even"))
}

func TestPublicSurface_Promises(t *testing.T) {
	e := expectkit.New()
	expectkit.Assert(t, e, expectkit.Resolve(3), "when fulfilled", "to equal", 3)
	expectkit.Assert(t, e, expectkit.Reject(errors.New("nope")), "to be rejected with", "nope")
}

func TestPublicSurface_Frozen(t *testing.T) {
	e := expectkit.New().Freeze()
	err := e.AddAssertion("<any> to be anything", func(c *expectkit.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, expectkit.ErrFrozen)
	assert.ErrorIs(t, err, expectkit.ErrUsage)
}
