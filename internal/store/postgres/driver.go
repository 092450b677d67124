// Package postgres implements internal/store.Driver against PostgreSQL
// via database/sql and lib/pq, following the query style of the
// teacher's store/db/postgres package (explicit SQL, $N placeholders,
// RowsAffected checks for conditional writes).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/chatsla/sentinel/internal/store"
)

type DB struct {
	db *sql.DB
}

func Open(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	return &DB{db: db}, nil
}

func placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.kind, c.monitoring_enabled, c.sla_enabled, c.notify_in_chat_on_breach,
		       c.is24x7_mode, c.sla_threshold_minutes, c.client_tier, c.accountant_telegram_ids,
		       c.accountant_usernames, c.accountant_username, c.assigned_accountant_id,
		       c.manager_telegram_ids, c.deleted_at, c.escalation_gate,
		       a.id, a.telegram_id, a.telegram_username
		FROM chat c
		LEFT JOIN accountant a ON a.id = c.assigned_accountant_id
		WHERE c.id = $1`, id)
	return scanChat(row)
}

func scanChat(row *sql.Row) (*store.Chat, error) {
	var c store.Chat
	var kind string
	var tier sql.NullString
	var threshold sql.NullInt64
	var accIDs int64Array
	var accUsernames, mgrIDs stringArray
	var legacyUsername, assignedID sql.NullString
	var deletedAt sql.NullTime
	var accAID, accTGUser sql.NullString
	var accTGID sql.NullInt64

	err := row.Scan(&c.ID, &c.Title, &kind, &c.MonitoringEnabled, &c.SLAEnabled, &c.NotifyInChatOnBreach,
		&c.Is24x7Mode, &threshold, &tier, &accIDs, &accUsernames, &legacyUsername, &assignedID,
		&mgrIDs, &deletedAt, &c.EscalationGate, &accAID, &accTGID, &accTGUser)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	c.Kind = store.ChatKind(kind)
	if threshold.Valid {
		v := int(threshold.Int64)
		c.SLAThresholdMinutes = &v
	}
	if tier.Valid {
		v := store.ClientTier(tier.String)
		c.ClientTier = &v
	}
	c.AccountantTelegramIDs = accIDs.vals
	c.AccountantUsernames = accUsernames.strs
	if legacyUsername.Valid {
		c.AccountantUsername = &legacyUsername.String
	}
	if assignedID.Valid {
		c.AssignedAccountantID = &assignedID.String
	}
	c.ManagerTelegramIDs = mgrIDs.strs
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	if accAID.Valid {
		acc := &store.Accountant{ID: accAID.String}
		if accTGID.Valid {
			acc.TelegramID = &accTGID.Int64
		}
		if accTGUser.Valid {
			acc.TelegramUsername = &accTGUser.String
		}
		c.AssignedAccountant = acc
	}
	return &c, nil
}

func (d *DB) ListChats(ctx context.Context) ([]*store.Chat, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM chat WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	out := make([]*store.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := d.GetChat(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *DB) UpsertChat(ctx context.Context, c *store.Chat) error {
	var tier, legacy, assigned interface{}
	if c.ClientTier != nil {
		tier = string(*c.ClientTier)
	}
	if c.AccountantUsername != nil {
		legacy = *c.AccountantUsername
	}
	if c.AssignedAccountantID != nil {
		assigned = *c.AssignedAccountantID
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO chat (id, title, kind, monitoring_enabled, sla_enabled, notify_in_chat_on_breach,
			is24x7_mode, sla_threshold_minutes, client_tier, accountant_telegram_ids, accountant_usernames,
			accountant_username, assigned_accountant_id, manager_telegram_ids, escalation_gate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, kind = EXCLUDED.kind, monitoring_enabled = EXCLUDED.monitoring_enabled,
			sla_enabled = EXCLUDED.sla_enabled, notify_in_chat_on_breach = EXCLUDED.notify_in_chat_on_breach,
			is24x7_mode = EXCLUDED.is24x7_mode, sla_threshold_minutes = EXCLUDED.sla_threshold_minutes,
			client_tier = EXCLUDED.client_tier, accountant_telegram_ids = EXCLUDED.accountant_telegram_ids,
			accountant_usernames = EXCLUDED.accountant_usernames, accountant_username = EXCLUDED.accountant_username,
			assigned_accountant_id = EXCLUDED.assigned_accountant_id, manager_telegram_ids = EXCLUDED.manager_telegram_ids,
			escalation_gate = EXCLUDED.escalation_gate`,
		c.ID, c.Title, string(c.Kind), c.MonitoringEnabled, c.SLAEnabled, c.NotifyInChatOnBreach,
		c.Is24x7Mode, c.SLAThresholdMinutes, tier, int64Array{vals: c.AccountantTelegramIDs}, strArray(c.AccountantUsernames),
		legacy, assigned, strArray(c.ManagerTelegramIDs), c.EscalationGate)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (d *DB) SoftDeleteChat(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx, `UPDATE chat SET deleted_at = now(), monitoring_enabled = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete chat: %w", err)
	}
	return nil
}

func (d *DB) CreateRequest(ctx context.Context, r *store.Request) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO request (id, chat_id, message_id, message_text, client_username, classification,
			classification_score, status, received_at, thread_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.ChatID, r.MessageID, r.MessageText, r.ClientUsername, string(r.Classification),
		r.ClassificationScore, string(r.Status), r.ReceivedAt, r.ThreadID)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

const requestColumns = `r.id, r.chat_id, r.message_id, r.message_text, r.client_username, r.classification,
	r.classification_score, r.status, r.received_at, r.response_at, r.response_message_id, r.responded_by,
	r.response_time_minutes, r.sla_breached, r.assigned_to, r.thread_id, r.paused_working_minutes`

func scanRequest(row interface{ Scan(...interface{}) error }) (*store.Request, error) {
	var r store.Request
	var classification, status string
	var clientUsername, respondedBy, assignedTo, threadID sql.NullString
	var responseAt sql.NullTime
	var responseMessageID sql.NullInt64
	var responseTimeMinutes sql.NullInt64

	err := row.Scan(&r.ID, &r.ChatID, &r.MessageID, &r.MessageText, &clientUsername, &classification,
		&r.ClassificationScore, &status, &r.ReceivedAt, &responseAt, &responseMessageID, &respondedBy,
		&responseTimeMinutes, &r.SLABreached, &assignedTo, &threadID, &r.PausedWorkingMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.Classification = store.Classification(classification)
	r.Status = store.RequestStatus(status)
	if clientUsername.Valid {
		r.ClientUsername = &clientUsername.String
	}
	if responseAt.Valid {
		r.ResponseAt = &responseAt.Time
	}
	if responseMessageID.Valid {
		v := responseMessageID.Int64
		r.ResponseMessageID = &v
	}
	if respondedBy.Valid {
		r.RespondedBy = &respondedBy.String
	}
	if responseTimeMinutes.Valid {
		v := int(responseTimeMinutes.Int64)
		r.ResponseTimeMinutes = &v
	}
	if assignedTo.Valid {
		r.AssignedTo = &assignedTo.String
	}
	if threadID.Valid {
		r.ThreadID = &threadID.String
	}
	return &r, nil
}

func (d *DB) GetRequest(ctx context.Context, id string) (*store.Request, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request r WHERE r.id = $1`, id)
	return scanRequest(row)
}

func (d *DB) GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*store.Request, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request r WHERE r.chat_id = $1 AND r.message_id = $2`, chatID, messageID)
	return scanRequest(row)
}

// tierRankExpr orders by the request's chat's client tier: premium <
// vip < standard < basic < unset, matching store.TierRank.
const tierRankExpr = `CASE c.client_tier
	WHEN 'premium' THEN 0 WHEN 'vip' THEN 1 WHEN 'standard' THEN 2 WHEN 'basic' THEN 3 ELSE 4 END`

func (d *DB) ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM request r JOIN chat c ON c.id = r.chat_id WHERE 1=1`
	var args []interface{}
	idx := 1
	if find.ChatID != nil {
		q += fmt.Sprintf(" AND r.chat_id = %s", placeholder(idx))
		args = append(args, *find.ChatID)
		idx++
	}
	if len(find.Statuses) > 0 {
		var ph []string
		for _, st := range find.Statuses {
			ph = append(ph, placeholder(idx))
			args = append(args, string(st))
			idx++
		}
		q += fmt.Sprintf(" AND r.status IN (%s)", strings.Join(ph, ","))
	}
	order := "r.received_at ASC"
	if find.Order == store.OrderNewestFirst {
		order = "r.received_at DESC"
	}
	if find.ByTier {
		order = tierRankExpr + " ASC, " + order
	}
	q += " ORDER BY " + order
	if find.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", find.Limit)
	}
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	var out []*store.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildPatchSet renders the SET clause and args for a RequestPatch,
// starting argument numbering at startIdx.
func buildPatchSet(patch *store.RequestPatch, startIdx int) (string, []interface{}) {
	var sets []string
	var args []interface{}
	idx := startIdx
	add := func(col string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = %s", col, placeholder(idx)))
		args = append(args, v)
		idx++
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.ResponseAt != nil {
		add("response_at", *patch.ResponseAt)
	}
	if patch.ResponseMessageID != nil {
		add("response_message_id", *patch.ResponseMessageID)
	}
	if patch.RespondedBy != nil {
		add("responded_by", *patch.RespondedBy)
	}
	if patch.ResponseTimeMinutes != nil {
		add("response_time_minutes", *patch.ResponseTimeMinutes)
	}
	if patch.SLABreached != nil {
		add("sla_breached", *patch.SLABreached)
	}
	if patch.Classification != nil {
		add("classification", string(*patch.Classification))
	}
	if patch.ClassificationScore != nil {
		add("classification_score", *patch.ClassificationScore)
	}
	if patch.AssignedTo != nil {
		add("assigned_to", *patch.AssignedTo)
	}
	return strings.Join(sets, ", "), args
}

// UpdateIfStatusIn is the linchpin atomic conditional update (§4.2):
// the WHERE clause re-checks status in the same statement as the
// write, so the database (not application logic) arbitrates races.
func (d *DB) UpdateIfStatusIn(ctx context.Context, id string, from []store.RequestStatus, patch *store.RequestPatch) (int64, error) {
	setClause, args := buildPatchSet(patch, 1)
	if setClause == "" {
		return 0, nil
	}
	idx := len(args) + 1
	var ph []string
	for _, st := range from {
		ph = append(ph, placeholder(idx))
		args = append(args, string(st))
		idx++
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE request SET %s WHERE id = %s AND status IN (%s)",
		setClause, placeholder(idx), strings.Join(ph, ","))
	res, err := d.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("update if status in: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch) error {
	setClause, args := buildPatchSet(patch, 1)
	if setClause == "" {
		return nil
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE request SET %s WHERE id = %s", setClause, placeholder(len(args)))
	if _, err := d.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update request raw: %w", err)
	}
	return nil
}

// InsertAlert is conditional on the (requestID, level, alertType)
// uniqueness constraint (§4.9 idempotence): ON CONFLICT DO NOTHING
// tells the caller whether this call actually created the row.
func (d *DB) InsertAlert(ctx context.Context, a *store.Alert) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO alert (id, request_id, alert_type, level, minutes_elapsed, alert_sent_at, recipients, ack_token)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (request_id, level, alert_type) DO NOTHING`,
		a.ID, a.RequestID, string(a.AlertType), a.Level, a.MinutesElapsed, a.AlertSentAt, strArray(a.Recipients), a.AckToken)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert rows affected: %w", err)
	}
	return rows > 0, nil
}

func (d *DB) ListAlertsForRequest(ctx context.Context, requestID string) ([]*store.Alert, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, request_id, alert_type, level, minutes_elapsed, alert_sent_at, recipients,
		       resolved_action, resolution_notes, acknowledged_at, acknowledged_by, ack_token
		FROM alert WHERE request_id = $1 ORDER BY level ASC, alert_type ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []*store.Alert
	for rows.Next() {
		var a store.Alert
		var alertType string
		var recipients stringArray
		var resolvedAction, resolutionNotes, ackBy sql.NullString
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.RequestID, &alertType, &a.Level, &a.MinutesElapsed, &a.AlertSentAt,
			&recipients, &resolvedAction, &resolutionNotes, &ackAt, &ackBy, &a.AckToken); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = store.AlertType(alertType)
		a.Recipients = recipients.strs
		if resolvedAction.Valid {
			a.ResolvedAction = &resolvedAction.String
		}
		if resolutionNotes.Valid {
			a.ResolutionNotes = &resolutionNotes.String
		}
		if ackAt.Valid {
			a.AcknowledgedAt = &ackAt.Time
		}
		if ackBy.Valid {
			a.AcknowledgedBy = &ackBy.String
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (d *DB) ListUnresolvedAlerts(ctx context.Context, limit int) ([]*store.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, request_id, alert_type, level, minutes_elapsed, alert_sent_at, recipients,
		       resolved_action, resolution_notes, acknowledged_at, acknowledged_by, ack_token
		FROM alert WHERE acknowledged_at IS NULL ORDER BY alert_sent_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved alerts: %w", err)
	}
	defer rows.Close()
	var out []*store.Alert
	for rows.Next() {
		var a store.Alert
		var alertType string
		var recipients stringArray
		var resolvedAction, resolutionNotes, ackBy sql.NullString
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.RequestID, &alertType, &a.Level, &a.MinutesElapsed, &a.AlertSentAt,
			&recipients, &resolvedAction, &resolutionNotes, &ackAt, &ackBy, &a.AckToken); err != nil {
			return nil, fmt.Errorf("scan unresolved alert: %w", err)
		}
		a.AlertType = store.AlertType(alertType)
		a.Recipients = recipients.strs
		if resolvedAction.Valid {
			a.ResolvedAction = &resolvedAction.String
		}
		if resolutionNotes.Valid {
			a.ResolutionNotes = &resolutionNotes.String
		}
		if ackAt.Valid {
			a.AcknowledgedAt = &ackAt.Time
		}
		if ackBy.Valid {
			a.AcknowledgedBy = &ackBy.String
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (d *DB) ResolveAlert(ctx context.Context, alertID, action, notes, by string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE alert SET resolved_action = $1, resolution_notes = $2, acknowledged_at = now(), acknowledged_by = $3
		WHERE id = $4`, action, notes, by, alertID)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

func (d *DB) CurrentEscalationLevel(ctx context.Context, requestID string, alertType store.AlertType) (int, error) {
	var lvl sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT MAX(level) FROM alert WHERE request_id = $1 AND alert_type = $2`, requestID, string(alertType)).Scan(&lvl)
	if err != nil {
		return 0, fmt.Errorf("current escalation level: %w", err)
	}
	return int(lvl.Int64), nil
}

func (d *DB) InsertHistory(ctx context.Context, rows []*store.RequestHistory) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO request_history (id, request_id, field, old_value, new_value, changed_by, reason, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()
	for _, h := range rows {
		if _, err := stmt.ExecContext(ctx, h.ID, h.RequestID, h.Field, h.OldValue, h.NewValue, h.ChangedBy, h.Reason, h.At); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert history row: %w", err)
		}
	}
	return tx.Commit()
}

func (d *DB) GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT timezone, working_days, start_time, end_time, default_sla_threshold, max_escalations,
		       escalation_interval_min, sla_warning_percent, global_manager_ids, classifier_api_key,
		       classifier_model, ai_confidence_threshold
		FROM global_settings WHERE id = 1`)
	var gs store.GlobalSettings
	var workingDays intArray
	var managerIDs stringArray
	if err := row.Scan(&gs.Timezone, &workingDays, &gs.StartTime, &gs.EndTime, &gs.DefaultSLAThreshold,
		&gs.MaxEscalations, &gs.EscalationIntervalMin, &gs.SLAWarningPercent, &managerIDs,
		&gs.ClassifierAPIKey, &gs.ClassifierModel, &gs.AIConfidenceThreshold); err != nil {
		return nil, fmt.Errorf("get global settings: %w", err)
	}
	for _, d := range workingDays.ints {
		gs.WorkingDays = append(gs.WorkingDays, time.Weekday(d))
	}
	gs.GlobalManagerIDs = managerIDs.strs
	return &gs, nil
}

func (d *DB) PutGlobalSettings(ctx context.Context, gs *store.GlobalSettings) error {
	var days []int
	for _, w := range gs.WorkingDays {
		days = append(days, int(w))
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO global_settings (id, timezone, working_days, start_time, end_time, default_sla_threshold,
			max_escalations, escalation_interval_min, sla_warning_percent, global_manager_ids,
			classifier_api_key, classifier_model, ai_confidence_threshold)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			timezone=EXCLUDED.timezone, working_days=EXCLUDED.working_days, start_time=EXCLUDED.start_time,
			end_time=EXCLUDED.end_time, default_sla_threshold=EXCLUDED.default_sla_threshold,
			max_escalations=EXCLUDED.max_escalations, escalation_interval_min=EXCLUDED.escalation_interval_min,
			sla_warning_percent=EXCLUDED.sla_warning_percent, global_manager_ids=EXCLUDED.global_manager_ids,
			classifier_api_key=EXCLUDED.classifier_api_key, classifier_model=EXCLUDED.classifier_model,
			ai_confidence_threshold=EXCLUDED.ai_confidence_threshold`,
		gs.Timezone, intArray{ints: days}, gs.StartTime, gs.EndTime, gs.DefaultSLAThreshold, gs.MaxEscalations,
		gs.EscalationIntervalMin, gs.SLAWarningPercent, strArray(gs.GlobalManagerIDs), gs.ClassifierAPIKey,
		gs.ClassifierModel, gs.AIConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("put global settings: %w", err)
	}
	return nil
}

func (d *DB) ListWorkingSchedule(ctx context.Context, chatID int64) ([]*store.WorkingSchedule, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT chat_id, weekday, start_time, end_time, timezone, is_active
		FROM working_schedule WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list working schedule: %w", err)
	}
	defer rows.Close()
	var out []*store.WorkingSchedule
	for rows.Next() {
		var ws store.WorkingSchedule
		var weekday int
		if err := rows.Scan(&ws.ChatID, &weekday, &ws.Start, &ws.End, &ws.Timezone, &ws.IsActive); err != nil {
			return nil, fmt.Errorf("scan working schedule: %w", err)
		}
		ws.Weekday = time.Weekday(weekday)
		out = append(out, &ws)
	}
	return out, rows.Err()
}

func (d *DB) ListHolidays(ctx context.Context, chatID int64) ([]*store.Holiday, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT chat_id, date FROM holiday WHERE chat_id = $1 OR chat_id = 0`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()
	var out []*store.Holiday
	for rows.Next() {
		var h store.Holiday
		if err := rows.Scan(&h.ChatID, &h.Date); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
