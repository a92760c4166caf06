package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus of a membership
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// MembershipCategory of a membership type
type MembershipCategory string

const (
	CategoryCompetitor   MembershipCategory = "competitor"
	CategoryTeam         MembershipCategory = "team"
	CategoryRetail       MembershipCategory = "retail"
	CategoryManufacturer MembershipCategory = "manufacturer"
)

// PointsEligibleCategories are the categories whose members earn points
var PointsEligibleCategories = []MembershipCategory{
	CategoryCompetitor,
	CategoryRetail,
	CategoryManufacturer,
}

// IsPointsEligible reports whether members of the category earn points
func (c MembershipCategory) IsPointsEligible() bool {
	for _, eligible := range PointsEligibleCategories {
		if c == eligible {
			return true
		}
	}
	return false
}

// Membership is a competitor's paid membership period
type Membership struct {
	ID                uuid.UUID          `db:"id" json:"id"`
	ProfileID         *uuid.UUID         `db:"user_id" json:"user_id,omitempty"`
	MemberID          string             `db:"meca_id" json:"meca_id"`
	Category          MembershipCategory `db:"category" json:"category"`
	PaymentStatus     PaymentStatus      `db:"payment_status" json:"payment_status"`
	StartDate         time.Time          `db:"start_date" json:"start_date"`
	EndDate           *time.Time         `db:"end_date" json:"end_date,omitempty"`
	CancelAtPeriodEnd bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CancelledAt       *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
}

// IsActiveAt reports whether the membership period covers now
func (m *Membership) IsActiveAt(now time.Time) bool {
	if m.CancelledAt != nil && !m.CancelAtPeriodEnd {
		return false
	}
	if m.EndDate == nil {
		return true
	}
	if m.CancelAtPeriodEnd {
		return m.EndDate.After(now)
	}
	return !m.EndDate.Before(now)
}

// IsPointsEligibleAt reports whether the membership makes its holder points-eligible at now
func (m *Membership) IsPointsEligibleAt(now time.Time) bool {
	return m.PaymentStatus == PaymentPaid && m.Category.IsPointsEligible() && m.IsActiveAt(now)
}
