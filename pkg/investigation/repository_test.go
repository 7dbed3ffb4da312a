package investigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinsim/platform/pkg/common/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func seedCaseAndSession(t *testing.T, repo *Repository, config []byte, owner string) (models.Case, models.Session) {
	t.Helper()
	ctx := context.Background()
	caseRecord, err := repo.CreateCase(ctx, "Chest pain, 54M", config, "instructor1")
	if err != nil {
		t.Fatalf("failed to create case: %v", err)
	}
	session, err := repo.CreateSession(ctx, caseRecord.ID, owner)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return caseRecord, session
}

func TestRepositoryPlaceOrderMaterializes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	caseRecord, session := seedCaseAndSession(t, repo, nil, "trainee1")

	now := time.Now().UTC()
	inv := models.CaseInvestigation{
		CaseID:        caseRecord.ID,
		TestName:      "Potassium",
		TestGroup:     "Biochemistry",
		Gender:        models.GenderBoth,
		MinValue:      3.5,
		MaxValue:      5.5,
		CurrentValue:  4.2,
		Unit:          "mmol/L",
		NormalSamples: []float64{4.0, 4.2, 4.5},
	}
	detail, err := repo.PlaceOrder(ctx, session.ID, inv, 15, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.InvestigationID == 0 {
		t.Fatal("expected a durable numeric investigation id")
	}
	if detail.AvailableAt.Before(detail.OrderedAt) {
		t.Fatal("available_at must never precede ordered_at")
	}
	if got := detail.AvailableAt.Sub(detail.OrderedAt); got != 15*time.Minute {
		t.Fatalf("expected 15m turnaround, got %v", got)
	}

	stored, err := repo.GetCaseInvestigation(ctx, detail.InvestigationID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.TestName != "Potassium" || len(stored.NormalSamples) != 3 {
		t.Fatalf("materialized row lost fields: %+v", stored)
	}
}

func TestRepositoryMarkViewedOnlyOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	caseRecord, session := seedCaseAndSession(t, repo, nil, "trainee1")

	detail, err := repo.PlaceOrder(ctx, session.ID, models.CaseInvestigation{
		CaseID: caseRecord.ID, TestName: "Sodium", CurrentValue: 140,
	}, 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstViewed := time.Now().UTC()
	first, err := repo.MarkOrderViewed(ctx, detail.ID, firstViewed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Fatal("expected first view to update the row")
	}

	second, err := repo.MarkOrderViewed(ctx, detail.ID, firstViewed.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second {
		t.Fatal("expected repeat view to be a no-op")
	}

	stored, err := repo.GetOrderDetail(ctx, detail.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ViewedAt == nil {
		t.Fatal("expected viewed_at to be set")
	}
	if stored.ViewedAt.Sub(firstViewed).Abs() > time.Second {
		t.Fatalf("viewed_at moved on repeat view: %v vs %v", stored.ViewedAt, firstViewed)
	}
}

func TestRepositoryListOrderDetailsJoinsInvestigation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	caseRecord, session := seedCaseAndSession(t, repo, nil, "trainee1")

	now := time.Now().UTC()
	for _, name := range []string{"Sodium", "Potassium"} {
		if _, err := repo.PlaceOrder(ctx, session.ID, models.CaseInvestigation{
			CaseID: caseRecord.ID, TestName: name, Unit: "mmol/L", CurrentValue: 4,
		}, 30, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	details, err := repo.ListOrderDetails(ctx, session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(details))
	}
	if details[0].TestName != "Sodium" || details[1].TestName != "Potassium" {
		t.Fatalf("expected placement order preserved, got %q then %q", details[0].TestName, details[1].TestName)
	}
	if details[0].Unit != "mmol/L" {
		t.Fatal("join lost investigation display fields")
	}
}

func TestRepositoryNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetSession(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetCase(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetCaseInvestigation(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetOrderDetail(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteCaseInvestigation(ctx, uuid.New(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryCaseInvestigationCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	caseRecord, _ := seedCaseAndSession(t, repo, nil, "trainee1")

	created, err := repo.CreateCaseInvestigation(ctx, models.CaseInvestigation{
		CaseID:            caseRecord.ID,
		TestName:          "Troponin I",
		TestGroup:         "Cardiac",
		CurrentValue:      1.8,
		MinValue:          0,
		MaxValue:          0.04,
		Unit:              "ng/mL",
		IsAbnormal:        true,
		TurnaroundMinutes: 45,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected autoincrement id")
	}

	listed, err := repo.ListCaseInvestigations(ctx, caseRecord.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 || listed[0].TurnaroundMinutes != 45 {
		t.Fatalf("unexpected list: %+v", listed)
	}

	if err := repo.DeleteCaseInvestigation(ctx, caseRecord.ID, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listed, err = repo.ListCaseInvestigations(ctx, caseRecord.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(listed))
	}
}
