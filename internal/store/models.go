package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Buyer is one CRM contact: an overseas retailer, distributor, or agent.
type Buyer struct {
	ID          string
	Company     string
	Country     string
	ContactName string
	Email       string
	Phone       string
	Channel     string // inbound, exhibition, outreach, referral
	Grade       string // A, B, C
	Memo        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Project is one deal with a buyer, moving through the pipeline stages.
type Project struct {
	ID        string
	BuyerID   string
	Name      string
	Stage     string
	Currency  string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectDocument is the current instance of one document role within a
// project. Fields holds the tradedoc field bag as raw JSON; the store does
// not interpret it.
type ProjectDocument struct {
	ID        string
	ProjectID string
	DocKey    string
	Fields    json.RawMessage
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GateRun is the persisted record of one gate evaluation, kept for audit.
// Payload carries the full JSON result the UI rendered.
type GateRun struct {
	ID             string
	ProjectID      string
	Passed         bool
	PassedChecks   int
	RequiredChecks int
	Payload        json.RawMessage
	RanBy          string
	CreatedAt      time.Time
}

// Attachment is the metadata row for a file stored in the object store.
type Attachment struct {
	ID          string
	ProjectID   string
	ObjectKey   string
	Filename    string
	ContentType string
	Size        int64
	UploadedBy  string
	CreatedAt   time.Time
}
