package investigation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/clinsim/platform/pkg/common/logger"
	"github.com/clinsim/platform/pkg/common/models"
	"github.com/clinsim/platform/pkg/reference"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventRecorder receives analytics events. Implementations must never
// block the caller; the ledger treats emission as fire-and-forget.
type EventRecorder interface {
	Record(event models.AnalyticsEvent)
}

type Service struct {
	repo     *Repository
	library  *reference.Library
	recorder EventRecorder
	idem     *redis.Client
	idemTTL  time.Duration
}

func NewService(repo *Repository, library *reference.Library, recorder EventRecorder) *Service {
	return &Service{repo: repo, library: library, recorder: recorder}
}

// WithIdempotencyGuard enables the redis SET NX guard on batch placement.
func (s *Service) WithIdempotencyGuard(client *redis.Client, ttl time.Duration) *Service {
	s.idem = client
	s.idemTTL = ttl
	return s
}

// authorizeSession loads the session and enforces ownership: non-admins may
// only touch sessions they own.
func (s *Service) authorizeSession(ctx context.Context, identity models.Identity, sessionID uuid.UUID) (models.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if !identity.IsAdmin() && session.OwnerID != identity.UserID {
		return models.Session{}, ErrAccessDenied
	}
	return session, nil
}

func (s *Service) caseConfig(ctx context.Context, caseID uuid.UUID) (CaseConfig, error) {
	caseRecord, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return CaseConfig{}, err
	}
	return ParseCaseConfig(caseRecord.Config)
}

// Orderable resolves the catalog of tests a trainee can order in this
// session.
func (s *Service) Orderable(ctx context.Context, identity models.Identity, sessionID uuid.UUID) ([]models.OrderableTest, error) {
	session, err := s.authorizeSession(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.caseConfig(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCaseInvestigations(ctx, session.CaseID)
	if err != nil {
		return nil, err
	}
	return ResolveOrderable(cfg, rows, s.library)
}

// PlaceOrders places one order per identifier. The batch is
// continue-on-error: a bad identifier is reported in the result and the
// rest proceed. Placed entries preserve the caller-supplied order.
func (s *Service) PlaceOrders(ctx context.Context, identity models.Identity, sessionID uuid.UUID, req models.PlaceOrdersRequest) (models.PlaceOrdersResult, error) {
	session, err := s.authorizeSession(ctx, identity, sessionID)
	if err != nil {
		return models.PlaceOrdersResult{}, err
	}
	cfg, err := s.caseConfig(ctx, session.CaseID)
	if err != nil {
		return models.PlaceOrdersResult{}, err
	}
	if err := s.claimIdempotencyKey(ctx, sessionID, req.IdempotencyKey); err != nil {
		return models.PlaceOrdersResult{}, err
	}

	rows, err := s.repo.ListCaseInvestigations(ctx, session.CaseID)
	if err != nil {
		return models.PlaceOrdersResult{}, err
	}
	catalog, err := ResolveOrderable(cfg, rows, s.library)
	if err != nil {
		return models.PlaceOrdersResult{}, err
	}
	byID := make(map[string]models.OrderableTest, len(catalog))
	for _, entry := range catalog {
		byID[strings.ToLower(entry.ID)] = entry
	}

	override := OverrideFromRequest(req.TurnaroundMinutes)
	now := time.Now().UTC()

	var result models.PlaceOrdersResult
	for _, identifier := range req.Tests {
		placed, err := s.placeOne(ctx, session, cfg, byID, identifier, override, now)
		if err != nil {
			result.Failed = append(result.Failed, models.OrderFailure{Identifier: identifier, Reason: err.Error()})
			continue
		}
		result.Placed = append(result.Placed, models.PlacedOrder{Identifier: identifier, Order: placed})
		s.recorder.Record(models.AnalyticsEvent{
			ID:        uuid.New().String(),
			Type:      models.EventInvestigationOrdered,
			SessionID: sessionID.String(),
			UserID:    identity.UserID,
			CaseID:    session.CaseID.String(),
			Timestamp: now,
			Context: map[string]interface{}{
				"order_id":           placed.ID,
				"test_name":          placed.TestName,
				"turnaround_minutes": placed.TurnaroundMinutes,
				"instant_results":    cfg.InstantResults,
				"override_applied":   override.IsSet(),
			},
		})
	}
	result.PlacedCount = len(result.Placed)
	result.FailedCount = len(result.Failed)
	return result, nil
}

func (s *Service) placeOne(ctx context.Context, session models.Session, cfg CaseConfig, catalog map[string]models.OrderableTest, identifier string, override TurnaroundOverride, now time.Time) (models.OrderView, error) {
	ref, err := ParseTestRef(identifier)
	if err != nil {
		return models.OrderView{}, err
	}

	var inv models.CaseInvestigation
	switch ref.Kind {
	case RefNumeric:
		inv, err = s.repo.GetCaseInvestigation(ctx, ref.ID)
		if err != nil {
			return models.OrderView{}, err
		}
		if inv.CaseID != session.CaseID {
			return models.OrderView{}, ErrNotFound
		}
	default:
		entry, ok := catalog[strings.ToLower(ref.String())]
		if !ok {
			return models.OrderView{}, fmt.Errorf("test %q is not orderable for this session", identifier)
		}
		inv = materialize(session.CaseID, entry)
	}

	turnaround := ResolveTurnaround(cfg.InstantResults, override, inv.TurnaroundMinutes, cfg.DefaultTurnaroundMinutes)
	detail, err := s.repo.PlaceOrder(ctx, session.ID, inv, turnaround, now)
	if err != nil {
		return models.OrderView{}, err
	}
	detail.TurnaroundMinutes = turnaround
	return orderView(detail, now), nil
}

// materialize copies a resolved descriptor into a durable row. Default-
// sourced entries get a fresh sampled value; the value a trainee sees is
// fixed at order time, immune to later catalog or config changes.
func materialize(caseID uuid.UUID, entry models.OrderableTest) models.CaseInvestigation {
	value := entry.CurrentValue
	if entry.Source == models.SourceDefault {
		value = sampleValue(entry)
	}
	return models.CaseInvestigation{
		CaseID:            caseID,
		TestName:          entry.TestName,
		TestGroup:         entry.TestGroup,
		Gender:            entry.Gender,
		MinValue:          entry.MinValue,
		MaxValue:          entry.MaxValue,
		CurrentValue:      value,
		Unit:              entry.Unit,
		NormalSamples:     entry.NormalSamples,
		IsAbnormal:        entry.IsAbnormal,
		TurnaroundMinutes: entry.TurnaroundMinutes,
	}
}

func sampleValue(entry models.OrderableTest) float64 {
	return reference.RandomNormalValue(models.TestDefinition{
		MinValue:      entry.MinValue,
		MaxValue:      entry.MaxValue,
		NormalSamples: entry.NormalSamples,
	})
}

// MarkViewed records the first view of an order's result. Repeat calls are
// idempotent: viewed_at keeps its original value and the view delay metric
// reports zero.
func (s *Service) MarkViewed(ctx context.Context, identity models.Identity, orderID int64) (models.OrderView, error) {
	detail, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		return models.OrderView{}, err
	}
	session, err := s.authorizeSession(ctx, identity, detail.SessionID)
	if err != nil {
		return models.OrderView{}, err
	}

	now := time.Now().UTC()
	first, err := s.repo.MarkOrderViewed(ctx, orderID, now)
	if err != nil {
		return models.OrderView{}, err
	}
	if first {
		detail.ViewedAt = &now
	}

	waitMinutes := detail.AvailableAt.Sub(detail.OrderedAt).Minutes()
	viewDelayMinutes := 0.0
	if first {
		viewDelayMinutes = math.Max(0, now.Sub(detail.AvailableAt).Minutes())
	}
	totalMinutes := now.Sub(detail.OrderedAt).Minutes()

	s.recorder.Record(models.AnalyticsEvent{
		ID:        uuid.New().String(),
		Type:      models.EventResultViewed,
		SessionID: detail.SessionID.String(),
		UserID:    identity.UserID,
		CaseID:    session.CaseID.String(),
		Timestamp: now,
		Context: map[string]interface{}{
			"order_id":           detail.ID,
			"test_name":          detail.TestName,
			"result":             formatResult(detail),
			"value":              detail.CurrentValue,
			"unit":               detail.Unit,
			"is_abnormal":        detail.IsAbnormal,
			"wait_minutes":       waitMinutes,
			"view_delay_minutes": viewDelayMinutes,
			"total_minutes":      totalMinutes,
		},
	})

	return orderView(detail, now), nil
}

// ListOrders returns every order in the session with readiness annotations.
func (s *Service) ListOrders(ctx context.Context, identity models.Identity, sessionID uuid.UUID) ([]models.OrderView, error) {
	if _, err := s.authorizeSession(ctx, identity, sessionID); err != nil {
		return nil, err
	}
	details, err := s.repo.ListOrderDetails(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]models.OrderView, 0, len(details))
	for _, detail := range details {
		views = append(views, orderView(detail, now))
	}
	return views, nil
}

// ListResults returns only ready orders, each evaluated against its
// reference range.
func (s *Service) ListResults(ctx context.Context, identity models.Identity, sessionID uuid.UUID) ([]models.ResultView, error) {
	if _, err := s.authorizeSession(ctx, identity, sessionID); err != nil {
		return nil, err
	}
	details, err := s.repo.ListOrderDetails(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	results := make([]models.ResultView, 0, len(details))
	for _, detail := range details {
		if now.Before(detail.AvailableAt) {
			continue
		}
		results = append(results, resultView(detail))
	}
	return results, nil
}

// CreateCaseInvestigation is the instructor path for pre-setting an
// abnormal (or specific) value on a case.
func (s *Service) CreateCaseInvestigation(ctx context.Context, identity models.Identity, caseID uuid.UUID, req models.CreateCaseInvestigationRequest) (models.CaseInvestigation, error) {
	if !identity.IsAdmin() {
		return models.CaseInvestigation{}, ErrAccessDenied
	}
	if _, err := s.repo.GetCase(ctx, caseID); err != nil {
		return models.CaseInvestigation{}, err
	}
	if strings.TrimSpace(req.TestName) == "" {
		return models.CaseInvestigation{}, fmt.Errorf("test_name is required")
	}
	return s.repo.CreateCaseInvestigation(ctx, models.CaseInvestigation{
		CaseID:            caseID,
		TestName:          req.TestName,
		TestGroup:         fallbackGroup(req.TestGroup),
		Gender:            models.NormalizeGender(req.Gender),
		MinValue:          req.MinValue,
		MaxValue:          req.MaxValue,
		CurrentValue:      req.CurrentValue,
		Unit:              req.Unit,
		NormalSamples:     req.NormalSamples,
		IsAbnormal:        req.IsAbnormal,
		TurnaroundMinutes: req.TurnaroundMinutes,
	})
}

func (s *Service) ListCaseInvestigations(ctx context.Context, identity models.Identity, caseID uuid.UUID) ([]models.CaseInvestigation, error) {
	if !identity.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if _, err := s.repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListCaseInvestigations(ctx, caseID)
}

func (s *Service) DeleteCaseInvestigation(ctx context.Context, identity models.Identity, caseID uuid.UUID, id int64) error {
	if !identity.IsAdmin() {
		return ErrAccessDenied
	}
	return s.repo.DeleteCaseInvestigation(ctx, caseID, id)
}

// UpdateCaseConfig replaces a case's configuration document. The document is
// parsed before it is stored so a malformed policy never reaches trainees.
func (s *Service) UpdateCaseConfig(ctx context.Context, identity models.Identity, caseID uuid.UUID, doc []byte) error {
	if !identity.IsAdmin() {
		return ErrAccessDenied
	}
	if _, err := ParseCaseConfig(doc); err != nil {
		return err
	}
	return s.repo.UpdateCaseConfig(ctx, caseID, doc)
}

// claimIdempotencyKey is best-effort: a reachable redis rejects replays,
// an unreachable one logs and lets the batch through.
func (s *Service) claimIdempotencyKey(ctx context.Context, sessionID uuid.UUID, key string) error {
	if s.idem == nil || key == "" {
		return nil
	}
	claimed, err := s.idem.SetNX(ctx, fmt.Sprintf("orders:idem:%s:%s", sessionID, key), 1, s.idemTTL).Result()
	if err != nil {
		logger.Log.WithError(err).Warn("idempotency guard unavailable, proceeding")
		return nil
	}
	if !claimed {
		return ErrDuplicateBatch
	}
	return nil
}

func orderView(detail models.OrderDetail, now time.Time) models.OrderView {
	view := models.OrderView{OrderDetail: detail}
	if now.Before(detail.AvailableAt) {
		view.MinutesRemaining = int(math.Ceil(detail.AvailableAt.Sub(now).Minutes()))
	} else {
		view.IsReady = true
	}
	return view
}

func resultView(detail models.OrderDetail) models.ResultView {
	view := models.ResultView{OrderDetail: detail, Status: models.ResultStatusNormal}
	switch {
	case detail.CurrentValue < detail.MinValue:
		view.Status = models.ResultStatusLow
		view.Flag = "↓"
	case detail.CurrentValue > detail.MaxValue:
		view.Status = models.ResultStatusHigh
		view.Flag = "↑"
	}
	return view
}

func formatResult(detail models.OrderDetail) string {
	result := strings.TrimSpace(fmt.Sprintf("%g %s", detail.CurrentValue, detail.Unit))
	if detail.IsAbnormal {
		result += " (ABNORMAL)"
	}
	return result
}
