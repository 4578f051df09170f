package models

import (
	"time"

	"github.com/google/uuid"

	"gumball/pkg/domain"
)

// GateMode records which eligibility gate authorized an issuance.
type GateMode string

const (
	GateModeOpen      GateMode = "open"
	GateModePassToken GateMode = "pass_token"
	GateModeQuota     GateMode = "quota"
)

// Receipt is the journal row written after every successful issuance.
// Receipts outlive the machine record, so the journal keys by config address.
type Receipt struct {
	ID         uuid.UUID
	ConfigAddr domain.Identity
	Requester  domain.Identity
	Metadata   Metadata
	Gate       GateMode
	Supply     uint32 // CurrentSupply after this issuance
	CreatedAt  time.Time
}
