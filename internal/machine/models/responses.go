package models

import "time"

// ConfigResponse is the owner-facing view of the record.
type ConfigResponse struct {
	Owner         string              `json:"owner"`
	Status        string              `json:"status"`
	TotalSupply   uint32              `json:"total_supply"`
	CurrentSupply uint32              `json:"current_supply"`
	PassToken     string              `json:"pass_token,omitempty"`
	Collection    string              `json:"collection,omitempty"`
	AllowList     []AllowListResponse `json:"allow_list"`
}

type AllowListResponse struct {
	User  string `json:"user"`
	Quota uint8  `json:"quota"`
}

// NewConfigResponse converts a record to its wire view.
func NewConfigResponse(cfg *Config) ConfigResponse {
	resp := ConfigResponse{
		Owner:         cfg.Owner.String(),
		Status:        cfg.Status.String(),
		TotalSupply:   cfg.TotalSupply,
		CurrentSupply: cfg.CurrentSupply,
		AllowList:     make([]AllowListResponse, 0, len(cfg.AllowList)),
	}
	if cfg.PassToken != nil {
		resp.PassToken = cfg.PassToken.String()
	}
	if cfg.Collection != nil {
		resp.Collection = cfg.Collection.String()
	}
	for _, e := range cfg.AllowList {
		resp.AllowList = append(resp.AllowList, AllowListResponse{User: e.User.String(), Quota: e.Quota})
	}
	return resp
}

// MintResponse acknowledges one successful issuance.
type MintResponse struct {
	ReceiptID string    `json:"receipt_id"`
	Gate      string    `json:"gate"`
	Supply    uint32    `json:"supply"`
	CreatedAt time.Time `json:"created_at"`
}

// CollectionResponse returns the bound collection identity.
type CollectionResponse struct {
	Collection string `json:"collection"`
}

// ReceiptResponse is one journal row.
type ReceiptResponse struct {
	ReceiptID string    `json:"receipt_id"`
	Requester string    `json:"requester"`
	Metadata  Metadata  `json:"metadata"`
	Gate      string    `json:"gate"`
	Supply    uint32    `json:"supply"`
	CreatedAt time.Time `json:"created_at"`
}
