package models

import (
	"gumball/pkg/domain"
)

// Config is the persisted record scoping one issuance campaign. One record
// exists per owner, stored under the derived config address.
//
// Invariant: CurrentSupply <= TotalSupply after every committed operation.
type Config struct {
	Owner         domain.Identity
	Bump          uint8
	Status        domain.TreeStatus
	TotalSupply   uint32
	CurrentSupply uint32
	// PassToken, when set, enables the burn gate for that token.
	PassToken *domain.Identity
	// Collection, when set, is the namespace the minting service issues into.
	Collection *domain.Identity
	// AllowList grows append-only; entries are not deduplicated, a user may
	// hold several entries and lookups take the first match.
	AllowList []AllowListEntry
}

// AllowListEntry grants a user a remaining issuance quota. Owned exclusively
// by its Config; quota only ever decreases, by exactly one per issuance.
type AllowListEntry struct {
	User  domain.Identity
	Quota uint8
}

// NewConfig builds a fresh record: zero counters, empty allow-list, Inactive.
func NewConfig(owner domain.Identity, bump uint8, totalSupply uint32) *Config {
	return &Config{
		Owner:       owner,
		Bump:        bump,
		Status:      domain.TreeStatusInactive,
		TotalSupply: totalSupply,
	}
}

// Clone deep-copies the record. Transactional updates mutate a clone and
// commit it only on success.
func (c *Config) Clone() *Config {
	cp := *c
	if c.PassToken != nil {
		pt := *c.PassToken
		cp.PassToken = &pt
	}
	if c.Collection != nil {
		col := *c.Collection
		cp.Collection = &col
	}
	if c.AllowList != nil {
		cp.AllowList = make([]AllowListEntry, len(c.AllowList))
		copy(cp.AllowList, c.AllowList)
	}
	return &cp
}

// FindAllowed returns a pointer to the first allow-list entry for user, or nil.
// First-match is deliberate: duplicate entries exist and later ones are only
// reachable once earlier ones are removed, which never happens today.
func (c *Config) FindAllowed(user domain.Identity) *AllowListEntry {
	for i := range c.AllowList {
		if c.AllowList[i].User == user {
			return &c.AllowList[i]
		}
	}
	return nil
}

// Exhausted reports whether every unit has been issued.
func (c *Config) Exhausted() bool {
	return c.CurrentSupply == c.TotalSupply
}
