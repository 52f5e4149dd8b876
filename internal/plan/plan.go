// Package plan defines the pricing tiers and their weekly composition quotas.
package plan

import (
	"errors"
	"fmt"
)

var ErrUnknownPlan = errors.New("plan: unknown plan")

// Plan identifies the pricing tier.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Config defines limits for a pricing tier.
type Config struct {
	Plan        Plan
	WeeklyLimit int // composition jobs per 7-day window
}

// Plans is the hardcoded plan catalogue.
var Plans = map[Plan]Config{
	PlanBasic:   {Plan: PlanBasic, WeeklyLimit: 2},
	PlanPro:     {Plan: PlanPro, WeeklyLimit: 3},
	PlanPremium: {Plan: PlanPremium, WeeklyLimit: 5},
}

// Valid returns true if the plan name is recognised.
func Valid(p Plan) bool {
	_, ok := Plans[p]
	return ok
}

// FromKey resolves a plan from an external plan key (e.g. checkout metadata).
func FromKey(key string) (Plan, bool) {
	p := Plan(key)
	if Valid(p) {
		return p, true
	}
	return "", false
}

// Catalog resolves plans from billing-provider identifiers. The reverse
// price-ID mapping is fixed at construction; configuration errors surface
// here, never at request time.
type Catalog struct {
	byPrice map[string]Plan
}

// PriceMapping binds one provider price ID to a plan key.
type PriceMapping struct {
	PriceID string
	Key     string
}

// NewCatalog builds a catalog from provider price-ID → plan key pairs.
// Two distinct price IDs may point at the same plan; one price ID pointing
// at two different plans, or at an unknown plan, is a configuration error.
// Empty price IDs are skipped so unset environment entries don't poison
// the catalog.
func NewCatalog(mappings []PriceMapping) (*Catalog, error) {
	byPrice := make(map[string]Plan, len(mappings))
	for _, m := range mappings {
		if m.PriceID == "" {
			continue
		}
		p, ok := FromKey(m.Key)
		if !ok {
			return nil, fmt.Errorf("plan: price %s maps to unknown plan %q", m.PriceID, m.Key)
		}
		if existing, dup := byPrice[m.PriceID]; dup && existing != p {
			return nil, fmt.Errorf("plan: price %s maps to both %s and %s", m.PriceID, existing, p)
		}
		byPrice[m.PriceID] = p
	}
	return &Catalog{byPrice: byPrice}, nil
}

// LimitFor returns the weekly job limit for a plan.
func (c *Catalog) LimitFor(p Plan) (int, error) {
	cfg, ok := Plans[p]
	if !ok {
		return 0, ErrUnknownPlan
	}
	return cfg.WeeklyLimit, nil
}

// FromPrice reverse-resolves a plan from a provider price ID.
func (c *Catalog) FromPrice(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}
