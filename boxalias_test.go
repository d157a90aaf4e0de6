package identity_test

import (
	"context"
	"strings"
	"testing"

	identity "github.com/boxworks/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAliasChecker struct {
	collisions int
	calls      int
	err        error
}

func (c *stubAliasChecker) AliasExists(ctx context.Context, alias string) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.calls <= c.collisions, nil
}

func TestAliasGeneratorFormat(t *testing.T) {
	gen := identity.NewAliasGenerator(&stubAliasChecker{})

	draw, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(draw.Alias, "BOX-"))
	assert.Len(t, draw.Alias, len("BOX-")+6)
	assert.Equal(t, 1, draw.Attempts)
	assert.False(t, draw.Fallback)

	for _, r := range draw.Alias[len("BOX-"):] {
		assert.Contains(t, identity.AliasAlphabet, string(r))
	}
}

func TestAliasGeneratorRetriesOnCollision(t *testing.T) {
	checker := &stubAliasChecker{collisions: 3}
	gen := identity.NewAliasGenerator(checker)

	draw, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, draw.Attempts)
	assert.False(t, draw.Fallback)
	assert.Equal(t, 4, checker.calls)
}

func TestAliasGeneratorFallbackAfterExhaustion(t *testing.T) {
	checker := &stubAliasChecker{collisions: identity.MaxAliasAttempts + 5}
	gen := identity.NewAliasGenerator(checker)

	draw, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, draw.Fallback)
	assert.Equal(t, identity.MaxAliasAttempts, draw.Attempts)
	// the fallback draw skips the uniqueness check
	assert.Equal(t, identity.MaxAliasAttempts, checker.calls)
	assert.True(t, strings.HasPrefix(draw.Alias, "BOX-"))
}

func TestAliasGeneratorCheckerError(t *testing.T) {
	checker := &stubAliasChecker{err: assert.AnError}
	gen := identity.NewAliasGenerator(checker)

	_, err := gen.Generate(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, checker.calls)
}

func TestAliasGeneratorProducesDistinctAliases(t *testing.T) {
	gen := identity.NewAliasGenerator(&stubAliasChecker{})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		draw, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[draw.Alias], "alias %s drawn twice", draw.Alias)
		seen[draw.Alias] = true
	}
}
