package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/chatsla/sentinel/internal/slaerr"
)

// Store provides typed access to all persisted entities, wrapping a
// Driver with the audit-interception hook described in spec.md §4.2 and
// §9: the generic query-hook in the teacher's source ORM becomes an
// explicit snapshot + update + diff + history-insert sequence here,
// with the actor attribution passed explicitly via AuditContext rather
// than held in ambient state.
type Store struct {
	driver Driver
}

func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) Close() error        { return s.driver.Close() }
func (s *Store) Ping(ctx context.Context) error { return s.driver.Ping(ctx) }

func (s *Store) GetChat(ctx context.Context, id int64) (*Chat, error) {
	c, err := s.driver.GetChat(ctx, id)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "GetChat", Err: err}
	}
	return c, nil
}

func (s *Store) ListChats(ctx context.Context) ([]*Chat, error) {
	cs, err := s.driver.ListChats(ctx)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListChats", Err: err}
	}
	return cs, nil
}

func (s *Store) UpsertChat(ctx context.Context, c *Chat) error {
	if err := s.driver.UpsertChat(ctx, c); err != nil {
		return &slaerr.StoreError{Op: "UpsertChat", Err: err}
	}
	return nil
}

func (s *Store) SoftDeleteChat(ctx context.Context, id int64) error {
	if err := s.driver.SoftDeleteChat(ctx, id); err != nil {
		return &slaerr.StoreError{Op: "SoftDeleteChat", Err: err}
	}
	return nil
}

func (s *Store) CreateRequest(ctx context.Context, r *Request) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.driver.CreateRequest(ctx, r); err != nil {
		return &slaerr.StoreError{Op: "CreateRequest", Err: err}
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*Request, error) {
	r, err := s.driver.GetRequest(ctx, id)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "GetRequest", Err: err}
	}
	return r, nil
}

func (s *Store) GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*Request, error) {
	r, err := s.driver.GetRequestByMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "GetRequestByMessage", Err: err}
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, find *FindRequest) ([]*Request, error) {
	rs, err := s.driver.ListRequests(ctx, find)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListRequests", Err: err}
	}
	return rs, nil
}

// UpdateIfStatusIn performs the race-free conditional update and audits
// the change when it wins. A zero-rows result is not an error: it
// means another actor already claimed the request (slaerr.RaceLost),
// and the audit hook is skipped since nothing changed.
func (s *Store) UpdateIfStatusIn(ctx context.Context, id string, from []RequestStatus, patch *RequestPatch, ac AuditContext) (bool, error) {
	before, err := s.driver.GetRequest(ctx, id)
	if err != nil {
		return false, &slaerr.StoreError{Op: "UpdateIfStatusIn.snapshot", Err: err}
	}
	rows, err := s.driver.UpdateIfStatusIn(ctx, id, from, patch)
	if err != nil {
		return false, &slaerr.StoreError{Op: "UpdateIfStatusIn", Err: err}
	}
	if rows == 0 {
		return false, nil
	}
	s.audit(ctx, before, patch, ac)
	return true, nil
}

// UpdateRequestRaw applies an already-validated patch unconditionally
// (used once UpdateStatus in internal/lifecycle has confirmed the
// transition is legal) and audits the change.
func (s *Store) UpdateRequestRaw(ctx context.Context, id string, patch *RequestPatch, ac AuditContext) error {
	before, err := s.driver.GetRequest(ctx, id)
	if err != nil {
		return &slaerr.StoreError{Op: "UpdateRequestRaw.snapshot", Err: err}
	}
	if err := s.driver.UpdateRequestRaw(ctx, id, patch); err != nil {
		return &slaerr.StoreError{Op: "UpdateRequestRaw", Err: err}
	}
	s.audit(ctx, before, patch, ac)
	return nil
}

// audit diffs the patch against the pre-update snapshot and writes one
// history row per changed tracked field. It never fails the parent
// operation: a write failure here is wrapped in slaerr.AuditError and
// logged with slog.Warn (best-effort, per spec.md §4.2).
func (s *Store) audit(ctx context.Context, before *Request, patch *RequestPatch, ac AuditContext) {
	var rows []*RequestHistory
	add := func(field, oldV, newV string) {
		if oldV == newV {
			return
		}
		rows = append(rows, &RequestHistory{
			ID:        uuid.NewString(),
			RequestID: before.ID,
			Field:     field,
			OldValue:  oldV,
			NewValue:  newV,
			ChangedBy: ac.ChangedBy,
			Reason:    ac.Reason,
			At:        time.Now(),
		})
	}
	if patch.Status != nil {
		add("status", string(before.Status), string(*patch.Status))
	}
	if patch.AssignedTo != nil {
		add("assignedTo", derefStr(before.AssignedTo), *patch.AssignedTo)
	}
	if patch.Classification != nil {
		add("classification", string(before.Classification), string(*patch.Classification))
	}
	if patch.ClassificationScore != nil {
		add("classificationScore", fmt.Sprintf("%.3f", before.ClassificationScore), fmt.Sprintf("%.3f", *patch.ClassificationScore))
	}
	if patch.SLABreached != nil {
		add("slaBreached", fmt.Sprintf("%t", before.SLABreached), fmt.Sprintf("%t", *patch.SLABreached))
	}
	if patch.RespondedBy != nil {
		add("respondedBy", derefStr(before.RespondedBy), *patch.RespondedBy)
	}
	if len(rows) == 0 {
		return
	}
	if err := s.driver.InsertHistory(ctx, rows); err != nil {
		// Best-effort: audit failures never roll back or fail the caller,
		// but must still be visible to operators.
		auditErr := &slaerr.AuditError{Err: errors.Wrap(err, "insert request history")}
		slog.Warn("store: audit insert failed", "requestID", before.ID, "error", auditErr)
	}
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Store) InsertAlert(ctx context.Context, a *Alert) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	created, err := s.driver.InsertAlert(ctx, a)
	if err != nil {
		return false, &slaerr.StoreError{Op: "InsertAlert", Err: err}
	}
	return created, nil
}

func (s *Store) ListAlertsForRequest(ctx context.Context, requestID string) ([]*Alert, error) {
	al, err := s.driver.ListAlertsForRequest(ctx, requestID)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListAlertsForRequest", Err: err}
	}
	return al, nil
}

func (s *Store) ListUnresolvedAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	al, err := s.driver.ListUnresolvedAlerts(ctx, limit)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListUnresolvedAlerts", Err: err}
	}
	return al, nil
}

func (s *Store) ResolveAlert(ctx context.Context, alertID, action, notes, by string) error {
	if err := s.driver.ResolveAlert(ctx, alertID, action, notes, by); err != nil {
		return &slaerr.StoreError{Op: "ResolveAlert", Err: err}
	}
	return nil
}

func (s *Store) CurrentEscalationLevel(ctx context.Context, requestID string, alertType AlertType) (int, error) {
	lvl, err := s.driver.CurrentEscalationLevel(ctx, requestID, alertType)
	if err != nil {
		return 0, &slaerr.StoreError{Op: "CurrentEscalationLevel", Err: err}
	}
	return lvl, nil
}

func (s *Store) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	gs, err := s.driver.GetGlobalSettings(ctx)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "GetGlobalSettings", Err: err}
	}
	return gs, nil
}

func (s *Store) PutGlobalSettings(ctx context.Context, gs *GlobalSettings) error {
	if err := s.driver.PutGlobalSettings(ctx, gs); err != nil {
		return &slaerr.StoreError{Op: "PutGlobalSettings", Err: err}
	}
	return nil
}

func (s *Store) ListWorkingSchedule(ctx context.Context, chatID int64) ([]*WorkingSchedule, error) {
	ws, err := s.driver.ListWorkingSchedule(ctx, chatID)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListWorkingSchedule", Err: err}
	}
	return ws, nil
}

func (s *Store) ListHolidays(ctx context.Context, chatID int64) ([]*Holiday, error) {
	hs, err := s.driver.ListHolidays(ctx, chatID)
	if err != nil {
		return nil, &slaerr.StoreError{Op: "ListHolidays", Err: err}
	}
	return hs, nil
}
