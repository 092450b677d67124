// Package store is the persistent store adapter (C2): a typed facade
// over a relational backend with transactions and an audit-interception
// hook around Request updates.
package store

import "time"

// Classification is the four-label taxonomy the classifier assigns to
// client messages.
type Classification string

const (
	ClassificationRequest      Classification = "REQUEST"
	ClassificationClarification Classification = "CLARIFICATION"
	ClassificationSpam         Classification = "SPAM"
	ClassificationGratitude    Classification = "GRATITUDE"
)

// RequestStatus is the request lifecycle state (see internal/lifecycle).
type RequestStatus string

const (
	StatusPending       RequestStatus = "pending"
	StatusInProgress    RequestStatus = "in_progress"
	StatusWaitingClient RequestStatus = "waiting_client"
	StatusTransferred   RequestStatus = "transferred"
	StatusAnswered      RequestStatus = "answered"
	StatusEscalated     RequestStatus = "escalated"
	StatusClosed        RequestStatus = "closed"
)

// ClientTier is used both for config-layer defaults (C3) and for
// tie-break ordering in operational listings.
type ClientTier string

const (
	TierBasic    ClientTier = "basic"
	TierStandard ClientTier = "standard"
	TierVIP      ClientTier = "vip"
	TierPremium  ClientTier = "premium"
)

// TierRank returns the sort precedence for operational listings:
// premium < vip < standard < basic (lower sorts first).
func TierRank(t ClientTier) int {
	switch t {
	case TierPremium:
		return 0
	case TierVIP:
		return 1
	case TierStandard:
		return 2
	case TierBasic:
		return 3
	default:
		return 4
	}
}

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
)

// Chat is the roster entry for a monitored group chat.
type Chat struct {
	ID                    int64
	Title                 string
	Kind                  ChatKind
	MonitoringEnabled     bool
	SLAEnabled            bool
	NotifyInChatOnBreach  bool
	Is24x7Mode            bool
	SLAThresholdMinutes   *int
	ClientTier            *ClientTier
	AccountantTelegramIDs []int64
	AccountantUsernames   []string
	AccountantUsername    *string // legacy single-value fallback
	AssignedAccountantID  *string // user UUID
	AssignedAccountant    *Accountant
	ManagerTelegramIDs    []string
	DeletedAt             *time.Time

	// EscalationGate is an optional per-chat CEL expression (SPEC_FULL
	// §2/§3) gating whether a breach/warning dispatch fans out to
	// recipients; empty means no gating. It never affects the
	// unconditional Alert/slaBreached bookkeeping in C9.
	EscalationGate string
}

// EscalationGateExpr returns the chat's CEL escalation gate expression,
// or "" if unset.
func (c *Chat) EscalationGateExpr() string {
	if c == nil {
		return ""
	}
	return c.EscalationGate
}

// Accountant is the eager-loaded responder identity referenced by
// Chat.AssignedAccountantID.
type Accountant struct {
	ID               string
	TelegramID       *int64
	TelegramUsername *string
}

// Request is a tracked client question awaiting a responder reply.
type Request struct {
	ID                   string
	ChatID               int64
	MessageID            int64
	MessageText          string
	ClientUsername       *string
	Classification       Classification
	ClassificationScore  float64
	Status               RequestStatus
	ReceivedAt           time.Time
	ResponseAt           *time.Time
	ResponseMessageID    *int64
	RespondedBy          *string
	ResponseTimeMinutes  *int
	SLABreached          bool
	AssignedTo           *string
	ThreadID             *string
	PausedWorkingMinutes int // SPEC_FULL: accumulated minutes consumed before the clock was last paused
}

type AlertType string

const (
	AlertWarning AlertType = "warning"
	AlertBreach  AlertType = "breach"
)

// Alert is an append-only escalation event for a Request.
type Alert struct {
	ID               string
	RequestID        string
	AlertType        AlertType
	Level            int
	MinutesElapsed   int
	AlertSentAt      time.Time
	Recipients       []string
	ResolvedAction   *string
	ResolutionNotes  *string
	AcknowledgedAt   *time.Time
	AcknowledgedBy   *string
	AckToken         string // short, human-shareable acknowledgement token
}

// GlobalSettings is the singleton configuration row.
type GlobalSettings struct {
	Timezone              string
	WorkingDays           []time.Weekday
	StartTime             string // HH:MM
	EndTime                string // HH:MM
	DefaultSLAThreshold   int
	MaxEscalations        int
	EscalationIntervalMin int
	SLAWarningPercent     int
	GlobalManagerIDs      []string
	ClassifierAPIKey      string
	ClassifierModel       string
	AIConfidenceThreshold float64
}

// WorkingSchedule is an optional per-chat override row.
type WorkingSchedule struct {
	ChatID   int64
	Weekday  time.Weekday
	Start    string
	End      string
	Timezone string
	IsActive bool
}

// Holiday is a date excluded from working time, in the schedule's timezone.
type Holiday struct {
	ChatID int64 // 0 means global calendar
	Date   string // "2006-01-02"
}

// RequestHistory is an append-only diff entry written by the audit hook.
type RequestHistory struct {
	ID        string
	RequestID string
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
	Reason    string
	At        time.Time
}

// AuditContext carries the actor attribution for the audit hook. It is
// passed explicitly by callers rather than stashed in ambient state.
type AuditContext struct {
	ChangedBy string
	Reason    string
}

// FindRequest narrows ListRequests queries.
type FindRequest struct {
	ChatID   *int64
	Statuses []RequestStatus
	Order    SortOrder
	ByTier   bool // secondary sort key: premium<vip<standard<basic
	Limit    int
}

type SortOrder string

const (
	OrderOldestFirst SortOrder = "oldest_first" // FIFO, receivedAt asc
	OrderNewestFirst SortOrder = "newest_first" // LIFO, receivedAt desc
)

// RequestPatch is a partial update applied by UpdateIfStatusIn / UpdateRequestRaw.
type RequestPatch struct {
	Status              *RequestStatus
	ResponseAt          *time.Time
	ResponseMessageID   *int64
	RespondedBy         *string
	ResponseTimeMinutes *int
	SLABreached         *bool
	Classification      *Classification
	ClassificationScore *float64
	AssignedTo          *string
}
