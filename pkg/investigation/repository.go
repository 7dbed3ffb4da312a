package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clinsim/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type caseModel struct {
	ID        uuid.UUID      `gorm:"primaryKey;column:id"`
	Title     string         `gorm:"column:title"`
	Config    datatypes.JSON `gorm:"column:config"`
	CreatedBy string         `gorm:"column:created_by"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (caseModel) TableName() string { return "cases" }

type sessionModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	CaseID    uuid.UUID `gorm:"column:case_id;index"`
	OwnerID   string    `gorm:"column:owner_id;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (sessionModel) TableName() string { return "sessions" }

type caseInvestigationModel struct {
	ID                int64          `gorm:"primaryKey;autoIncrement;column:id"`
	CaseID            uuid.UUID      `gorm:"column:case_id;index"`
	TestName          string         `gorm:"column:test_name"`
	TestGroup         string         `gorm:"column:test_group"`
	Gender            string         `gorm:"column:gender"`
	MinValue          float64        `gorm:"column:min_value"`
	MaxValue          float64        `gorm:"column:max_value"`
	CurrentValue      float64        `gorm:"column:current_value"`
	Unit              string         `gorm:"column:unit"`
	NormalSamples     datatypes.JSON `gorm:"column:normal_samples"`
	IsAbnormal        bool           `gorm:"column:is_abnormal"`
	TurnaroundMinutes int            `gorm:"column:turnaround_minutes"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
}

func (caseInvestigationModel) TableName() string { return "case_investigations" }

type orderModel struct {
	ID              int64      `gorm:"primaryKey;autoIncrement;column:id"`
	SessionID       uuid.UUID  `gorm:"column:session_id;index"`
	InvestigationID int64      `gorm:"column:investigation_id"`
	OrderedAt       time.Time  `gorm:"column:ordered_at"`
	AvailableAt     time.Time  `gorm:"column:available_at"`
	ViewedAt        *time.Time `gorm:"column:viewed_at"`
}

func (orderModel) TableName() string { return "investigation_orders" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&caseModel{},
		&sessionModel{},
		&caseInvestigationModel{},
		&orderModel{},
	)
}

func (r *Repository) CreateCase(ctx context.Context, title string, config []byte, createdBy string) (models.Case, error) {
	now := time.Now().UTC()
	row := &caseModel{
		ID:        uuid.New(),
		Title:     title,
		Config:    datatypes.JSON(config),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Case{}, storeErr(err)
	}
	return caseFromRow(row), nil
}

func (r *Repository) GetCase(ctx context.Context, caseID uuid.UUID) (models.Case, error) {
	var row caseModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", caseID).Error; err != nil {
		return models.Case{}, storeErr(err)
	}
	return caseFromRow(&row), nil
}

func (r *Repository) UpdateCaseConfig(ctx context.Context, caseID uuid.UUID, config []byte) error {
	result := r.db.WithContext(ctx).Model(&caseModel{}).Where("id = ?", caseID).Updates(map[string]interface{}{
		"config":     datatypes.JSON(config),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return storeErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, caseID uuid.UUID, ownerID string) (models.Session, error) {
	row := &sessionModel{
		ID:        uuid.New(),
		CaseID:    caseID,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Session{}, storeErr(err)
	}
	return models.Session{ID: row.ID, CaseID: row.CaseID, OwnerID: row.OwnerID, CreatedAt: row.CreatedAt}, nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (models.Session, error) {
	var row sessionModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error; err != nil {
		return models.Session{}, storeErr(err)
	}
	return models.Session{ID: row.ID, CaseID: row.CaseID, OwnerID: row.OwnerID, CreatedAt: row.CreatedAt}, nil
}

func (r *Repository) CreateCaseInvestigation(ctx context.Context, inv models.CaseInvestigation) (models.CaseInvestigation, error) {
	row := investigationToRow(inv)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.CaseInvestigation{}, storeErr(err)
	}
	return investigationFromRow(row), nil
}

func (r *Repository) GetCaseInvestigation(ctx context.Context, id int64) (models.CaseInvestigation, error) {
	var row caseInvestigationModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.CaseInvestigation{}, storeErr(err)
	}
	return investigationFromRow(&row), nil
}

func (r *Repository) ListCaseInvestigations(ctx context.Context, caseID uuid.UUID) ([]models.CaseInvestigation, error) {
	var rows []caseInvestigationModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("id").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	investigations := make([]models.CaseInvestigation, 0, len(rows))
	for i := range rows {
		investigations = append(investigations, investigationFromRow(&rows[i]))
	}
	return investigations, nil
}

func (r *Repository) DeleteCaseInvestigation(ctx context.Context, caseID uuid.UUID, id int64) error {
	result := r.db.WithContext(ctx).Where("case_id = ? AND id = ?", caseID, id).Delete(&caseInvestigationModel{})
	if result.Error != nil {
		return storeErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PlaceOrder inserts one order, materializing the investigation first when
// it has no durable id yet. Both writes share a transaction so a pseudo-id
// never ends up half-materialized.
func (r *Repository) PlaceOrder(ctx context.Context, sessionID uuid.UUID, inv models.CaseInvestigation, turnaroundMinutes int, now time.Time) (models.OrderDetail, error) {
	var detail models.OrderDetail
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invRow := investigationToRow(inv)
		if invRow.ID == 0 {
			if err := tx.Create(invRow).Error; err != nil {
				return err
			}
		}
		order := &orderModel{
			SessionID:       sessionID,
			InvestigationID: invRow.ID,
			OrderedAt:       now,
			AvailableAt:     now.Add(time.Duration(turnaroundMinutes) * time.Minute),
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		detail = models.OrderDetail{
			Order: models.Order{
				ID:              order.ID,
				SessionID:       order.SessionID,
				InvestigationID: order.InvestigationID,
				OrderedAt:       order.OrderedAt,
				AvailableAt:     order.AvailableAt,
			},
			TestName:          invRow.TestName,
			TestGroup:         invRow.TestGroup,
			Unit:              invRow.Unit,
			CurrentValue:      invRow.CurrentValue,
			MinValue:          invRow.MinValue,
			MaxValue:          invRow.MaxValue,
			IsAbnormal:        invRow.IsAbnormal,
			TurnaroundMinutes: invRow.TurnaroundMinutes,
		}
		return nil
	})
	if err != nil {
		return models.OrderDetail{}, storeErr(err)
	}
	return detail, nil
}

type orderDetailRow struct {
	ID                int64
	SessionID         uuid.UUID
	InvestigationID   int64
	OrderedAt         time.Time
	AvailableAt       time.Time
	ViewedAt          *time.Time
	TestName          string
	TestGroup         string
	Unit              string
	CurrentValue      float64
	MinValue          float64
	MaxValue          float64
	IsAbnormal        bool
	TurnaroundMinutes int
}

const orderDetailQuery = `
SELECT o.id, o.session_id, o.investigation_id, o.ordered_at, o.available_at, o.viewed_at,
       ci.test_name, ci.test_group, ci.unit, ci.current_value, ci.min_value, ci.max_value,
       ci.is_abnormal, ci.turnaround_minutes
FROM investigation_orders o
INNER JOIN case_investigations ci ON ci.id = o.investigation_id`

func (r *Repository) ListOrderDetails(ctx context.Context, sessionID uuid.UUID) ([]models.OrderDetail, error) {
	var rows []orderDetailRow
	query := orderDetailQuery + ` WHERE o.session_id = ? ORDER BY o.ordered_at, o.id`
	if err := r.db.WithContext(ctx).Raw(query, sessionID).Scan(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	details := make([]models.OrderDetail, 0, len(rows))
	for i := range rows {
		details = append(details, detailFromRow(&rows[i]))
	}
	return details, nil
}

func (r *Repository) GetOrderDetail(ctx context.Context, orderID int64) (models.OrderDetail, error) {
	var rows []orderDetailRow
	query := orderDetailQuery + ` WHERE o.id = ?`
	if err := r.db.WithContext(ctx).Raw(query, orderID).Scan(&rows).Error; err != nil {
		return models.OrderDetail{}, storeErr(err)
	}
	if len(rows) == 0 {
		return models.OrderDetail{}, ErrNotFound
	}
	return detailFromRow(&rows[0]), nil
}

// MarkOrderViewed sets viewed_at only when it is still null. The returned
// flag reports whether this call was the first view.
func (r *Repository) MarkOrderViewed(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ? AND viewed_at IS NULL", orderID).
		Update("viewed_at", now)
	if result.Error != nil {
		return false, storeErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func caseFromRow(row *caseModel) models.Case {
	return models.Case{
		ID:        row.ID,
		Title:     row.Title,
		Config:    []byte(row.Config),
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func investigationToRow(inv models.CaseInvestigation) *caseInvestigationModel {
	row := &caseInvestigationModel{
		ID:                inv.ID,
		CaseID:            inv.CaseID,
		TestName:          inv.TestName,
		TestGroup:         inv.TestGroup,
		Gender:            string(inv.Gender),
		MinValue:          inv.MinValue,
		MaxValue:          inv.MaxValue,
		CurrentValue:      inv.CurrentValue,
		Unit:              inv.Unit,
		IsAbnormal:        inv.IsAbnormal,
		TurnaroundMinutes: inv.TurnaroundMinutes,
		CreatedAt:         inv.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if inv.NormalSamples != nil {
		if data, err := json.Marshal(inv.NormalSamples); err == nil {
			row.NormalSamples = datatypes.JSON(data)
		}
	}
	return row
}

func investigationFromRow(row *caseInvestigationModel) models.CaseInvestigation {
	return models.CaseInvestigation{
		ID:                row.ID,
		CaseID:            row.CaseID,
		TestName:          row.TestName,
		TestGroup:         row.TestGroup,
		Gender:            models.NormalizeGender(row.Gender),
		MinValue:          row.MinValue,
		MaxValue:          row.MaxValue,
		CurrentValue:      row.CurrentValue,
		Unit:              row.Unit,
		NormalSamples:     samplesFromJSON(row.NormalSamples),
		IsAbnormal:        row.IsAbnormal,
		TurnaroundMinutes: row.TurnaroundMinutes,
		CreatedAt:         row.CreatedAt,
	}
}

func detailFromRow(row *orderDetailRow) models.OrderDetail {
	return models.OrderDetail{
		Order: models.Order{
			ID:              row.ID,
			SessionID:       row.SessionID,
			InvestigationID: row.InvestigationID,
			OrderedAt:       row.OrderedAt,
			AvailableAt:     row.AvailableAt,
			ViewedAt:        row.ViewedAt,
		},
		TestName:          row.TestName,
		TestGroup:         row.TestGroup,
		Unit:              row.Unit,
		CurrentValue:      row.CurrentValue,
		MinValue:          row.MinValue,
		MaxValue:          row.MaxValue,
		IsAbnormal:        row.IsAbnormal,
		TurnaroundMinutes: row.TurnaroundMinutes,
	}
}

// samplesFromJSON normalizes whatever representation a normal_samples
// column holds into a plain slice.
func samplesFromJSON(data datatypes.JSON) []float64 {
	if len(data) == 0 {
		return nil
	}
	var samples flexFloats
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil
	}
	return []float64(samples)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}
