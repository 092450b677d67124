// Package lifecycle implements the request lifecycle state machine
// (C6): status transition validation, the race-free atomic claim on
// response, and response matching (reply-to lookup, LIFO fallback).
package lifecycle

import (
	"context"
	"time"

	"github.com/chatsla/sentinel/internal/metrics"
	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/store"
)

// Store is the subset of the persistence layer the lifecycle needs.
type Store interface {
	GetRequest(ctx context.Context, id string) (*store.Request, error)
	GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*store.Request, error)
	ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error)
	UpdateIfStatusIn(ctx context.Context, id string, from []store.RequestStatus, patch *store.RequestPatch, ac store.AuditContext) (bool, error)
	UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch, ac store.AuditContext) error
}

// Claimable is the set of statuses from which a response may claim a
// request (§4.6).
var Claimable = []store.RequestStatus{
	store.StatusPending,
	store.StatusInProgress,
	store.StatusWaitingClient,
	store.StatusTransferred,
	store.StatusEscalated,
}

// transitions is the full matrix from spec.md §4.6.
var transitions = map[store.RequestStatus]map[store.RequestStatus]bool{
	store.StatusPending: {
		store.StatusInProgress:    true,
		store.StatusWaitingClient: true,
		store.StatusTransferred:   true,
		store.StatusAnswered:      true,
		store.StatusEscalated:     true,
		store.StatusClosed:        true,
	},
	store.StatusInProgress: {
		store.StatusWaitingClient: true,
		store.StatusTransferred:   true,
		store.StatusAnswered:      true,
		store.StatusEscalated:     true,
		store.StatusClosed:        true,
	},
	store.StatusWaitingClient: {
		store.StatusInProgress: true,
		store.StatusAnswered:   true,
		store.StatusClosed:     true,
	},
	store.StatusTransferred: {
		store.StatusInProgress: true,
		store.StatusAnswered:   true,
		store.StatusClosed:     true,
	},
	store.StatusEscalated: {
		store.StatusInProgress: true,
		store.StatusAnswered:   true,
		store.StatusClosed:     true,
	},
	store.StatusAnswered: {
		store.StatusClosed: true,
	},
	store.StatusClosed: {},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to store.RequestStatus) bool {
	if from == to {
		return false
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Engine validates and performs status transitions and response claims.
type Engine struct {
	st Store
}

func New(st Store) *Engine {
	return &Engine{st: st}
}

// UpdateStatus loads the current status, rejects illegal transitions
// with slaerr.InvalidTransition (no write occurs), and performs the
// update under audit context otherwise.
func (e *Engine) UpdateStatus(ctx context.Context, id string, to store.RequestStatus, ac store.AuditContext) error {
	req, err := e.st.GetRequest(ctx, id)
	if err != nil {
		return &slaerr.StoreError{Op: "UpdateStatus.load", Err: err}
	}
	if !CanTransition(req.Status, to) {
		return &slaerr.InvalidTransition{From: string(req.Status), To: string(to)}
	}
	patch := &store.RequestPatch{Status: &to}
	if err := e.st.UpdateRequestRaw(ctx, id, patch, ac); err != nil {
		return &slaerr.StoreError{Op: "UpdateStatus.write", Err: err}
	}
	return nil
}

// MatchTarget resolves the target Claimable request for a responder's
// message, per spec.md §4.6:
//  1. reply-to match wins if the target is Claimable;
//  2. otherwise (no reply-to, or a reply-to message that is not a
//     tracked request) the latest (LIFO) pending request for the chat;
//  3. a reply-to an already-answered request is ignored, not
//     redirected to a different request.
func (e *Engine) MatchTarget(ctx context.Context, chatID int64, replyToMessageID *int64) (*store.Request, error) {
	if replyToMessageID != nil {
		target, err := e.st.GetRequestByMessage(ctx, chatID, *replyToMessageID)
		if err != nil {
			return nil, &slaerr.StoreError{Op: "MatchTarget.replyTo", Err: err}
		}
		if target != nil {
			if !isClaimable(target.Status) {
				// Reply to an already-resolved request: ignored outright,
				// never redirected to a different in-flight request.
				return nil, nil
			}
			return target, nil
		}
		// The replied-to message is not a tracked request: fall through
		// to the LIFO pending match.
	}

	rs, err := e.st.ListRequests(ctx, &store.FindRequest{
		ChatID:   &chatID,
		Statuses: []store.RequestStatus{store.StatusPending},
		Order:    store.OrderNewestFirst,
		Limit:    1,
	})
	if err != nil {
		return nil, &slaerr.StoreError{Op: "MatchTarget.lifo", Err: err}
	}
	if len(rs) == 0 {
		return nil, nil
	}
	return rs[0], nil
}

func isClaimable(s store.RequestStatus) bool {
	for _, c := range Claimable {
		if c == s {
			return true
		}
	}
	return false
}

// ClaimResponse performs spec.md §4.6's atomic "claim the request"
// step: updateIfStatusIn(CLAIMABLE, {answered, ...}). A false return
// with nil error means slaerr.RaceLost: another responder already
// claimed it and the caller should abort silently.
func (e *Engine) ClaimResponse(ctx context.Context, req *store.Request, responseAt time.Time, responseMessageID int64, respondedBy string, workingMinutes int, ac store.AuditContext) (bool, error) {
	status := store.StatusAnswered
	patch := &store.RequestPatch{
		Status:              &status,
		ResponseAt:          &responseAt,
		ResponseMessageID:   &responseMessageID,
		RespondedBy:         &respondedBy,
		ResponseTimeMinutes: &workingMinutes,
	}
	ok, err := e.st.UpdateIfStatusIn(ctx, req.ID, Claimable, patch, ac)
	if err != nil {
		return false, &slaerr.StoreError{Op: "ClaimResponse", Err: err}
	}
	if !ok {
		metrics.RaceLost.Inc()
		return false, nil
	}
	metrics.RequestsClaimed.Inc()
	metrics.ResponseTimeMinutes.Observe(float64(workingMinutes))
	return true, nil
}
