package models

import (
	dErrors "gumball/pkg/domain-errors"
)

// Metadata describes the item handed to the minting service. It is validated
// here once and treated as immutable afterwards.
type Metadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// Metadata limits follow the token-metadata convention the minting service
// enforces; rejecting early keeps provider failures out of the happy path.
const (
	maxNameLen   = 32
	maxSymbolLen = 10
	maxURILen    = 200
)

// Validate checks the metadata against minting-service field limits.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata name is required")
	}
	if len(m.Name) > maxNameLen {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata name exceeds 32 characters")
	}
	if len(m.Symbol) > maxSymbolLen {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata symbol exceeds 10 characters")
	}
	if m.URI == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata uri is required")
	}
	if len(m.URI) > maxURILen {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata uri exceeds 200 characters")
	}
	return nil
}

// InitializeRequest creates the machine record and binds its external tree.
type InitializeRequest struct {
	TotalSupply   uint32 `json:"total_supply"`
	MaxDepth      uint32 `json:"max_depth"`
	MaxBufferSize uint32 `json:"max_buffer_size"`
	// PassToken optionally enables the burn gate, hex identity.
	PassToken string `json:"pass_token,omitempty"`
}

// AddAllowListRequest appends one quota entry.
type AddAllowListRequest struct {
	User  string `json:"user"`
	Quota uint8  `json:"quota"`
}

// SetStatusRequest overwrites the machine status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// MintHTTPRequest is the wire payload of a mint call. The requester identity
// comes from the authenticated context, never the body.
type MintHTTPRequest struct {
	Metadata Metadata `json:"metadata"`
	// PassTokenAccount is the requester's holding account for the pass
	// token, hex identity; presence selects the burn gate.
	PassTokenAccount string `json:"pass_token_account,omitempty"`
}
