package identity

import (
	"context"
	"crypto/rand"

	"github.com/goliatone/go-errors"
)

// AliasAlphabet excludes visually ambiguous glyphs (0/O, 1/I/L).
const AliasAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	aliasPrefix = "BOX-"
	aliasLength = 6

	// MaxAliasAttempts bounds the uniqueness-checked draws before the
	// generator falls back to an unchecked random derivation.
	MaxAliasAttempts = 10
)

// AliasChecker answers whether an alias is already assigned.
type AliasChecker interface {
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// AliasDraw is the explicit outcome of a bounded generation loop.
type AliasDraw struct {
	Alias string
	// Attempts counts the uniqueness-checked draws consumed, including the
	// winning one. Equal to MaxAliasAttempts when Fallback is set.
	Attempts int
	// Fallback reports that every checked draw collided and the alias came
	// from the unchecked random derivation instead.
	Fallback bool
}

// AliasGenerator produces unique public box aliases of the form BOX-XXXXXX.
type AliasGenerator struct {
	checker AliasChecker
	logger  Logger
}

// NewAliasGenerator returns a generator backed by the given checker.
func NewAliasGenerator(checker AliasChecker) *AliasGenerator {
	return &AliasGenerator{
		checker: checker,
		logger:  defLogger{},
	}
}

func (g *AliasGenerator) WithLogger(logger Logger) *AliasGenerator {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Generate draws candidates and checks them against the repository, up to
// MaxAliasAttempts times. If every draw collides it derives an alias from a
// fresh random byte sequence without re-checking; the search space makes a
// collision unlikely, though not impossible.
func (g *AliasGenerator) Generate(ctx context.Context) (AliasDraw, error) {
	for attempt := 1; attempt <= MaxAliasAttempts; attempt++ {
		candidate, err := randomAlias()
		if err != nil {
			return AliasDraw{}, errors.Wrap(err, errors.CategoryInternal, "failed to draw alias candidate")
		}

		exists, err := g.checker.AliasExists(ctx, candidate)
		if err != nil {
			return AliasDraw{}, errors.Wrap(err, errors.CategoryInternal, "failed to check alias uniqueness")
		}

		if !exists {
			return AliasDraw{Alias: candidate, Attempts: attempt}, nil
		}
	}

	fallback, err := randomAlias()
	if err != nil {
		return AliasDraw{}, errors.Wrap(err, errors.CategoryInternal, "failed to derive fallback alias")
	}

	g.logger.Warn("alias generation exhausted %d checked attempts, using fallback", MaxAliasAttempts)

	return AliasDraw{Alias: fallback, Attempts: MaxAliasAttempts, Fallback: true}, nil
}

// randomAlias maps crypto-random bytes onto the restricted alphabet. The
// alphabet has 32 entries so a 5-bit mask indexes it without modulo bias.
func randomAlias() (string, error) {
	buf := make([]byte, aliasLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, 0, len(aliasPrefix)+aliasLength)
	out = append(out, aliasPrefix...)
	for _, b := range buf {
		out = append(out, AliasAlphabet[b&0x1f])
	}

	return string(out), nil
}
