// Package billing holds the plan catalog shared by the checkout initiator
// and the subscription reconciler.
package billing

import "github.com/openspot/openspot/internal/model"

// Plan couples a first-party plan id with its Stripe price id and the
// subscription tier it grants.
type Plan struct {
	ID      string
	Tier    string
	PriceID string
}

// Catalog is the closed set of purchasable plans, configured from the
// environment at startup.
type Catalog struct {
	plans   map[string]Plan
	byPrice map[string]Plan
}

// NewCatalog builds the catalog from the configured price ids. Plans without
// a price id are left out (not sellable in this deployment).
func NewCatalog(basicPriceID, proPriceID, enterprisePriceID string) Catalog {
	c := Catalog{
		plans:   make(map[string]Plan),
		byPrice: make(map[string]Plan),
	}
	add := func(id, tier, priceID string) {
		if priceID == "" {
			return
		}
		p := Plan{ID: id, Tier: tier, PriceID: priceID}
		c.plans[id] = p
		c.byPrice[priceID] = p
	}
	add("basic", model.TierBasic, basicPriceID)
	add("pro", model.TierPro, proPriceID)
	add("enterprise", model.TierEnterprise, enterprisePriceID)
	return c
}

// Lookup returns the plan for a first-party plan id.
func (c Catalog) Lookup(planID string) (Plan, bool) {
	p, ok := c.plans[planID]
	return p, ok
}

// ByPrice returns the plan for a Stripe price id.
func (c Catalog) ByPrice(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}
