package coupons

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

func TestStaticRuleSetResolveIgnoresCase(t *testing.T) {
	set, err := NewStaticRuleSet(DefaultRules()...)
	require.NoError(t, err)

	rule, err := set.Resolve(context.Background(), " welcome10 ")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", rule.Code)
	assert.Equal(t, enums.DiscountKindPercentage, rule.Kind)

	_, err = set.Resolve(context.Background(), "NOPE")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCouponNotFound))
	assert.Len(t, set.Rules(), 2)
}

func TestNewStaticRuleSetRejectsMalformed(t *testing.T) {
	_, err := NewStaticRuleSet(Rule{Code: "BAD", Kind: enums.DiscountKindPercentage, Value: dec("15")})
	require.Error(t, err)
}

const seedYAML = `
coupons:
  - code: summer15
    kind: Percentage
    value: "0.15"
    minimum_purchase: "200"
    expires_at: 2024-09-01
    description: Summer sale
  - code: LEGACY5
    kind: fixed
    value: 5
    active: false
`

func TestParseRulesYAML(t *testing.T) {
	rules, err := ParseRulesYAML([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	summer := rules[0]
	assert.Equal(t, "SUMMER15", summer.Code)
	assert.Equal(t, enums.DiscountKindPercentage, summer.Kind)
	assert.True(t, summer.Value.Equal(dec("0.15")))
	assert.True(t, summer.MinimumPurchase.Equal(dec("200")))
	require.NotNil(t, summer.ExpiresAt)
	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), *summer.ExpiresAt)
	assert.True(t, summer.Active)

	legacy := rules[1]
	assert.False(t, legacy.Active)
	assert.True(t, legacy.MinimumPurchase.IsZero())
}

func TestParseRulesYAMLErrors(t *testing.T) {
	_, err := ParseRulesYAML([]byte("coupons:\n  - code: X\n    kind: bogus\n    value: \"1\"\n"))
	require.Error(t, err)
	_, err = ParseRulesYAML([]byte("coupons:\n  - code: X\n    kind: fixed\n    value: abc\n"))
	require.Error(t, err)
	_, err = ParseRulesYAML([]byte("coupons: [\n"))
	require.Error(t, err)
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
