package models

import (
	"time"

	"github.com/google/uuid"
)

// Gender categories carried by reference tests and case demographics.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderBoth   Gender = "Both"
)

func NormalizeGender(raw string) Gender {
	switch raw {
	case "Male", "male", "M", "m":
		return GenderMale
	case "Female", "female", "F", "f":
		return GenderFemale
	case "Both", "both":
		return GenderBoth
	}
	return GenderMale
}

// TestDefinition is a reference-library-owned diagnostic test. Definitions
// are immutable once loaded; per-case overrides live in CaseInvestigation.
type TestDefinition struct {
	TestName      string    `json:"test_name" yaml:"name"`
	Group         string    `json:"group" yaml:"group"`
	Gender        Gender    `json:"gender" yaml:"gender"`
	MinValue      float64   `json:"min_value" yaml:"min"`
	MaxValue      float64   `json:"max_value" yaml:"max"`
	Unit          string    `json:"unit" yaml:"unit"`
	NormalSamples []float64 `json:"normal_samples" yaml:"normal_samples"`
}

// CaseInvestigation is a durable per-case test row. Rows are created by
// instructors up front or materialized from config/default descriptors at
// order time; the numeric ID is what orders reference.
type CaseInvestigation struct {
	ID                int64     `json:"id"`
	CaseID            uuid.UUID `json:"case_id"`
	TestName          string    `json:"test_name"`
	TestGroup         string    `json:"test_group"`
	Gender            Gender    `json:"gender"`
	MinValue          float64   `json:"min_value"`
	MaxValue          float64   `json:"max_value"`
	CurrentValue      float64   `json:"current_value"`
	Unit              string    `json:"unit"`
	NormalSamples     []float64 `json:"normal_samples"`
	IsAbnormal        bool      `json:"is_abnormal"`
	TurnaroundMinutes int       `json:"turnaround_minutes"`
	CreatedAt         time.Time `json:"created_at"`
}

type Case struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Config    []byte    `json:"-"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the gateway-resolved caller. Authentication itself happens
// upstream; this service only scopes ownership with it.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == "admin" || i.Role == "instructor"
}

// Source tags for resolved orderable tests.
const (
	SourceDefault  = "default"
	SourceConfig   = "config"
	SourceDatabase = "database"
)

// OrderableTest is one entry of the resolved per-session catalog. ID is a
// wire identifier: a numeric case-investigation id, or a config_/default_
// pseudo-id for entries not yet materialized.
type OrderableTest struct {
	ID                string    `json:"id"`
	TestName          string    `json:"test_name"`
	TestGroup         string    `json:"test_group"`
	Gender            Gender    `json:"gender,omitempty"`
	Unit              string    `json:"unit"`
	NormalSamples     []float64 `json:"normal_samples"`
	CurrentValue      float64   `json:"current_value"`
	MinValue          float64   `json:"min_value"`
	MaxValue          float64   `json:"max_value"`
	IsAbnormal        bool      `json:"is_abnormal"`
	TurnaroundMinutes int       `json:"turnaround_minutes,omitempty"`
	Source            string    `json:"source"`
}

type Order struct {
	ID              int64      `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	InvestigationID int64      `json:"investigation_id"`
	OrderedAt       time.Time  `json:"ordered_at"`
	AvailableAt     time.Time  `json:"available_at"`
	ViewedAt        *time.Time `json:"viewed_at,omitempty"`
}

// OrderDetail joins an order with its investigation's display fields.
type OrderDetail struct {
	Order
	TestName          string  `json:"test_name"`
	TestGroup         string  `json:"test_group"`
	Unit              string  `json:"unit"`
	CurrentValue      float64 `json:"current_value"`
	MinValue          float64 `json:"min_value"`
	MaxValue          float64 `json:"max_value"`
	IsAbnormal        bool    `json:"is_abnormal"`
	TurnaroundMinutes int     `json:"turnaround_minutes"`
}

type OrderView struct {
	OrderDetail
	IsReady          bool `json:"is_ready"`
	MinutesRemaining int  `json:"minutes_remaining"`
}

const (
	ResultStatusLow    = "low"
	ResultStatusNormal = "normal"
	ResultStatusHigh   = "high"
)

type ResultView struct {
	OrderDetail
	Status string `json:"status"`
	Flag   string `json:"flag,omitempty"`
}

type PlaceOrdersRequest struct {
	Tests             []string `json:"tests"`
	TurnaroundMinutes *int     `json:"turnaround_minutes,omitempty"`
	IdempotencyKey    string   `json:"idempotency_key,omitempty"`
}

type PlacedOrder struct {
	Identifier string    `json:"identifier"`
	Order      OrderView `json:"order"`
}

type OrderFailure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// PlaceOrdersResult reports a continue-on-error batch: Placed preserves the
// caller-supplied identifier order.
type PlaceOrdersResult struct {
	Placed      []PlacedOrder  `json:"placed"`
	Failed      []OrderFailure `json:"failed,omitempty"`
	PlacedCount int            `json:"placed_count"`
	FailedCount int            `json:"failed_count"`
}

type CreateCaseInvestigationRequest struct {
	TestName          string    `json:"test_name"`
	TestGroup         string    `json:"test_group,omitempty"`
	Gender            string    `json:"gender,omitempty"`
	MinValue          float64   `json:"min_value"`
	MaxValue          float64   `json:"max_value"`
	CurrentValue      float64   `json:"current_value"`
	Unit              string    `json:"unit,omitempty"`
	NormalSamples     []float64 `json:"normal_samples,omitempty"`
	IsAbnormal        bool      `json:"is_abnormal"`
	TurnaroundMinutes int       `json:"turnaround_minutes,omitempty"`
}

// AnalyticsEvent is the fire-and-forget record handed to the analytics sink.
type AnalyticsEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id,omitempty"`
	CaseID    string                 `json:"case_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

const (
	EventInvestigationOrdered = "investigation_ordered"
	EventResultViewed         = "result_viewed"
)
