package store

import "context"

// Driver is the backend-specific implementation a Store wraps. Two
// drivers exist (postgres for production, sqlite for dev/test),
// mirroring the teacher's store/db/{postgres,sqlite} split.
type Driver interface {
	Close() error

	GetChat(ctx context.Context, id int64) (*Chat, error)
	ListChats(ctx context.Context) ([]*Chat, error)
	UpsertChat(ctx context.Context, c *Chat) error
	SoftDeleteChat(ctx context.Context, id int64) error

	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*Request, error)
	ListRequests(ctx context.Context, find *FindRequest) ([]*Request, error)

	// UpdateIfStatusIn is the race-free conditional update that makes
	// claiming a request safe under concurrent responders. Returns the
	// number of rows changed (0 or 1).
	UpdateIfStatusIn(ctx context.Context, id string, fromStatuses []RequestStatus, patch *RequestPatch) (int64, error)

	// UpdateRequestRaw performs an unconditional update, used by
	// UpdateStatus (C6) once the transition has already been validated
	// against the current row.
	UpdateRequestRaw(ctx context.Context, id string, patch *RequestPatch) error

	InsertAlert(ctx context.Context, a *Alert) (created bool, err error) // conditional on (requestID, level, alertType)
	ListAlertsForRequest(ctx context.Context, requestID string) ([]*Alert, error)
	ListUnresolvedAlerts(ctx context.Context, limit int) ([]*Alert, error)
	ResolveAlert(ctx context.Context, alertID string, action, notes string, by string) error
	CurrentEscalationLevel(ctx context.Context, requestID string, alertType AlertType) (int, error)

	InsertHistory(ctx context.Context, rows []*RequestHistory) error

	GetGlobalSettings(ctx context.Context) (*GlobalSettings, error)
	PutGlobalSettings(ctx context.Context, s *GlobalSettings) error

	ListWorkingSchedule(ctx context.Context, chatID int64) ([]*WorkingSchedule, error)
	ListHolidays(ctx context.Context, chatID int64) ([]*Holiday, error)

	Ping(ctx context.Context) error
}
