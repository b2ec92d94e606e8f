// Package store holds the gorm-backed persistence layer: the
// out-of-core-scope User/Shop access model (consumed only as an interface
// contract by the signaling endpoint) and the core AnomalyEvent /
// TrainingSample tables.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
)

// User is consumed as a verified black box per spec.md §3: the core only
// ever sees an already-authenticated user_id and role.
type User struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role Role      `gorm:"type:text"`
}

// Shop carries the optional external alert sink target (C9).
type Shop struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID               uuid.UUID `gorm:"type:uuid;index"`
	ExternalAlertTarget   string
}

// ShopManager implements the MANAGER half of the §3 access rule:
// (shop.id, user.id) membership.
type ShopManager struct {
	ShopID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusAcknowledged   Status = "ACKNOWLEDGED"
	StatusResolved       Status = "RESOLVED"
	StatusFalsePositive  Status = "FALSE_POSITIVE"
)

// AnomalyEvent is the persisted record from spec.md §3.
type AnomalyEvent struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShopID           uuid.UUID `gorm:"type:uuid;index:idx_shop_ts;index:idx_shop_status"`
	Timestamp        time.Time `gorm:"index:idx_shop_ts"`
	Location         string
	Severity         Severity `gorm:"index:idx_sev_status"`
	Status           Status   `gorm:"index:idx_shop_status;index:idx_sev_status"`
	Description      string
	ImageRef         string
	AnomalyType      string
	ConfidenceScore  float64
	Extra            []byte `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FeedbackKind is the reviewer verdict recorded on a TrainingSample.
type FeedbackKind string

const (
	FeedbackNone          FeedbackKind = ""
	FeedbackTruePositive  FeedbackKind = "TRUE_POSITIVE"
	FeedbackFalsePositive FeedbackKind = "FALSE_POSITIVE"
	FeedbackUncertain     FeedbackKind = "UNCERTAIN"
)

// TrainingSample is 1:1 with AnomalyEvent at creation time per spec.md §3.
type TrainingSample struct {
	ID                        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AnomalyID                 uuid.UUID `gorm:"type:uuid;index"`
	PoseDict                  []byte    `gorm:"type:jsonb"`
	StreamID                  string
	FrameNumber                int
	PredictedScore             float64
	PredictedConfidenceBucket  string
	UserFeedback               FeedbackKind
	UserLabel                  *string
	UserNotes                  *string
	LabeledBy                  *string
	LabeledAt                  *time.Time
	UsedForTraining            bool
	TrainingBatchID            *string
	CreatedAt                  time.Time
}

// Migrate runs the set of AutoMigrate calls the process needs at startup.
// Schema migrations beyond this are explicitly out of core scope
// (spec.md §1); this exists only so the core is runnable standalone.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Shop{}, &ShopManager{}, &AnomalyEvent{}, &TrainingSample{})
}
