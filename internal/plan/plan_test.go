package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKey(t *testing.T) {
	p, ok := FromKey("pro")
	assert.True(t, ok)
	assert.Equal(t, PlanPro, p)

	_, ok = FromKey("enterprise")
	assert.False(t, ok)

	_, ok = FromKey("")
	assert.False(t, ok)
}

func TestWeeklyLimits(t *testing.T) {
	c, err := NewCatalog(nil)
	require.NoError(t, err)

	limit, err := c.LimitFor(PlanBasic)
	require.NoError(t, err)
	assert.Equal(t, 2, limit)

	limit, err = c.LimitFor(PlanPro)
	require.NoError(t, err)
	assert.Equal(t, 3, limit)

	limit, err = c.LimitFor(PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	_, err = c.LimitFor(Plan("free"))
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCatalog_FromPrice(t *testing.T) {
	c, err := NewCatalog([]PriceMapping{
		{PriceID: "price_basic_123", Key: "basic"},
		{PriceID: "price_pro_456", Key: "pro"},
		{PriceID: "price_premium_789", Key: "premium"},
	})
	require.NoError(t, err)

	p, ok := c.FromPrice("price_pro_456")
	assert.True(t, ok)
	assert.Equal(t, PlanPro, p)

	_, ok = c.FromPrice("price_unknown")
	assert.False(t, ok)
}

func TestCatalog_ConfigErrors(t *testing.T) {
	// Unknown plan key fails at construction.
	_, err := NewCatalog([]PriceMapping{{PriceID: "price_1", Key: "platinum"}})
	assert.Error(t, err)

	// Same price ID bound to two different plans fails at construction.
	_, err = NewCatalog([]PriceMapping{
		{PriceID: "price_1", Key: "basic"},
		{PriceID: "price_1", Key: "pro"},
	})
	assert.Error(t, err)

	// Same price ID bound twice to the same plan is legal.
	_, err = NewCatalog([]PriceMapping{
		{PriceID: "price_1", Key: "basic"},
		{PriceID: "price_1", Key: "basic"},
	})
	assert.NoError(t, err)

	// Empty price IDs (unset env entries) are skipped.
	c, err := NewCatalog([]PriceMapping{{PriceID: "", Key: "basic"}})
	require.NoError(t, err)
	_, ok := c.FromPrice("")
	assert.False(t, ok)
}
