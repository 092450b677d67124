// Package sqlite implements internal/store.Driver against a local
// SQLite file via modernc.org/sqlite (pure Go, no CGO) for development
// and test use, mirroring the connection-setup idiom of the teacher's
// store/db/sqlite package (pragma tuning, single-connection pool) while
// speaking the schema and queries this engine actually needs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatsla/sentinel/internal/store"
)

type DB struct {
	db *sql.DB
}

// Open connects to a SQLite database file (or ":memory:") with pragmas
// tuned for a single-writer local workload: WAL journaling, foreign
// keys on, and a busy timeout so concurrent readers don't immediately
// fail against the single writer connection.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &DB{db: sqlDB}, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func encodeStrs(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}

func decodeStrs(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func encodeInt64s(vs []int64) string {
	b, _ := json.Marshal(vs)
	return string(b)
}

func decodeInt64s(s sql.NullString) []int64 {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []int64
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func (d *DB) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.kind, c.monitoring_enabled, c.sla_enabled, c.notify_in_chat_on_breach,
		       c.is24x7_mode, c.sla_threshold_minutes, c.client_tier, c.accountant_telegram_ids,
		       c.accountant_usernames, c.accountant_username, c.assigned_accountant_id,
		       c.manager_telegram_ids, c.deleted_at, c.escalation_gate,
		       a.id, a.telegram_id, a.telegram_username
		FROM chat c
		LEFT JOIN accountant a ON a.id = c.assigned_accountant_id
		WHERE c.id = ?`, id)
	return scanChat(row)
}

func scanChat(row *sql.Row) (*store.Chat, error) {
	var c store.Chat
	var kind string
	var tier sql.NullString
	var threshold sql.NullInt64
	var accIDs, accUsernames, mgrIDs sql.NullString
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
	c.AccountantTelegramIDs = decodeInt64s(accIDs)
	c.AccountantUsernames = decodeStrs(accUsernames)
	if legacyUsername.Valid {
		c.AccountantUsername = &legacyUsername.String
	}
	if assignedID.Valid {
		c.AssignedAccountantID = &assignedID.String
	}
	c.ManagerTelegramIDs = decodeStrs(mgrIDs)
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, kind = excluded.kind, monitoring_enabled = excluded.monitoring_enabled,
			sla_enabled = excluded.sla_enabled, notify_in_chat_on_breach = excluded.notify_in_chat_on_breach,
			is24x7_mode = excluded.is24x7_mode, sla_threshold_minutes = excluded.sla_threshold_minutes,
			client_tier = excluded.client_tier, accountant_telegram_ids = excluded.accountant_telegram_ids,
			accountant_usernames = excluded.accountant_usernames, accountant_username = excluded.accountant_username,
			assigned_accountant_id = excluded.assigned_accountant_id, manager_telegram_ids = excluded.manager_telegram_ids,
			escalation_gate = excluded.escalation_gate`,
		c.ID, c.Title, string(c.Kind), c.MonitoringEnabled, c.SLAEnabled, c.NotifyInChatOnBreach,
		c.Is24x7Mode, c.SLAThresholdMinutes, tier, encodeInt64s(c.AccountantTelegramIDs), encodeStrs(c.AccountantUsernames),
		legacy, assigned, encodeStrs(c.ManagerTelegramIDs), c.EscalationGate)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (d *DB) SoftDeleteChat(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx, `UPDATE chat SET deleted_at = ?, monitoring_enabled = 0 WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("soft delete chat: %w", err)
	}
	return nil
}

func (d *DB) CreateRequest(ctx context.Context, r *store.Request) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO request (id, chat_id, message_id, message_text, client_username, classification,
			classification_score, status, received_at, thread_id)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
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
	var slaBreached int

	err := row.Scan(&r.ID, &r.ChatID, &r.MessageID, &r.MessageText, &clientUsername, &classification,
		&r.ClassificationScore, &status, &r.ReceivedAt, &responseAt, &responseMessageID, &respondedBy,
		&responseTimeMinutes, &slaBreached, &assignedTo, &threadID, &r.PausedWorkingMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.Classification = store.Classification(classification)
	r.Status = store.RequestStatus(status)
	r.SLABreached = slaBreached != 0
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
	row := d.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request r WHERE r.id = ?`, id)
	return scanRequest(row)
}

func (d *DB) GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*store.Request, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request r WHERE r.chat_id = ? AND r.message_id = ?`, chatID, messageID)
	return scanRequest(row)
}

// tierRankExpr orders by the request's chat's client tier: premium <
// vip < standard < basic < unset, matching store.TierRank.
const tierRankExpr = `CASE c.client_tier
	WHEN 'premium' THEN 0 WHEN 'vip' THEN 1 WHEN 'standard' THEN 2 WHEN 'basic' THEN 3 ELSE 4 END`

func (d *DB) ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM request r JOIN chat c ON c.id = r.chat_id WHERE 1=1`
	var args []interface{}
	if find.ChatID != nil {
		q += " AND r.chat_id = ?"
		args = append(args, *find.ChatID)
	}
	if len(find.Statuses) > 0 {
		var ph []string
		for _, st := range find.Statuses {
			ph = append(ph, "?")
			args = append(args, string(st))
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

func buildPatchSet(patch *store.RequestPatch) (string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
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

func (d *DB) UpdateIfStatusIn(ctx context.Context, id string, from []store.RequestStatus, patch *store.RequestPatch) (int64, error) {
	setClause, args := buildPatchSet(patch)
	if setClause == "" {
		return 0, nil
	}
	var ph []string
	for _, st := range from {
		ph = append(ph, "?")
		args = append(args, string(st))
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE request SET %s WHERE status IN (%s) AND id = ?", setClause, strings.Join(ph, ","))
	res, err := d.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("update if status in: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch) error {
	setClause, args := buildPatchSet(patch)
	if setClause == "" {
		return nil
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE request SET %s WHERE id = ?", setClause)
	if _, err := d.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update request raw: %w", err)
	}
	return nil
}

func (d *DB) InsertAlert(ctx context.Context, a *store.Alert) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO alert (id, request_id, alert_type, level, minutes_elapsed, alert_sent_at, recipients, ack_token)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (request_id, level, alert_type) DO NOTHING`,
		a.ID, a.RequestID, string(a.AlertType), a.Level, a.MinutesElapsed, a.AlertSentAt, encodeStrs(a.Recipients), a.AckToken)
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
		FROM alert WHERE request_id = ? ORDER BY level ASC, alert_type ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []*store.Alert
	for rows.Next() {
		var a store.Alert
		var alertType string
		var recipients sql.NullString
		var resolvedAction, resolutionNotes, ackBy sql.NullString
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.RequestID, &alertType, &a.Level, &a.MinutesElapsed, &a.AlertSentAt,
			&recipients, &resolvedAction, &resolutionNotes, &ackAt, &ackBy, &a.AckToken); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = store.AlertType(alertType)
		a.Recipients = decodeStrs(recipients)
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
		FROM alert WHERE acknowledged_at IS NULL ORDER BY alert_sent_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved alerts: %w", err)
	}
	defer rows.Close()
	var out []*store.Alert
	for rows.Next() {
		var a store.Alert
		var alertType string
		var recipients sql.NullString
		var resolvedAction, resolutionNotes, ackBy sql.NullString
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.RequestID, &alertType, &a.Level, &a.MinutesElapsed, &a.AlertSentAt,
			&recipients, &resolvedAction, &resolutionNotes, &ackAt, &ackBy, &a.AckToken); err != nil {
			return nil, fmt.Errorf("scan unresolved alert: %w", err)
		}
		a.AlertType = store.AlertType(alertType)
		a.Recipients = decodeStrs(recipients)
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
		UPDATE alert SET resolved_action = ?, resolution_notes = ?, acknowledged_at = ?, acknowledged_by = ?
		WHERE id = ?`, action, notes, time.Now(), by, alertID)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

func (d *DB) CurrentEscalationLevel(ctx context.Context, requestID string, alertType store.AlertType) (int, error) {
	var lvl sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT MAX(level) FROM alert WHERE request_id = ? AND alert_type = ?`, requestID, string(alertType)).Scan(&lvl)
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
		VALUES (?,?,?,?,?,?,?,?)`)
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
	var workingDays, managerIDs sql.NullString
	if err := row.Scan(&gs.Timezone, &workingDays, &gs.StartTime, &gs.EndTime, &gs.DefaultSLAThreshold,
		&gs.MaxEscalations, &gs.EscalationIntervalMin, &gs.SLAWarningPercent, &managerIDs,
		&gs.ClassifierAPIKey, &gs.ClassifierModel, &gs.AIConfidenceThreshold); err != nil {
		return nil, fmt.Errorf("get global settings: %w", err)
	}
	for _, d := range decodeInt64s(workingDays) {
		gs.WorkingDays = append(gs.WorkingDays, time.Weekday(d))
	}
	gs.GlobalManagerIDs = decodeStrs(managerIDs)
	return &gs, nil
}

func (d *DB) PutGlobalSettings(ctx context.Context, gs *store.GlobalSettings) error {
	var days []int64
	for _, w := range gs.WorkingDays {
		days = append(days, int64(w))
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO global_settings (id, timezone, working_days, start_time, end_time, default_sla_threshold,
			max_escalations, escalation_interval_min, sla_warning_percent, global_manager_ids,
			classifier_api_key, classifier_model, ai_confidence_threshold)
		VALUES (1,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			timezone=excluded.timezone, working_days=excluded.working_days, start_time=excluded.start_time,
			end_time=excluded.end_time, default_sla_threshold=excluded.default_sla_threshold,
			max_escalations=excluded.max_escalations, escalation_interval_min=excluded.escalation_interval_min,
			sla_warning_percent=excluded.sla_warning_percent, global_manager_ids=excluded.global_manager_ids,
			classifier_api_key=excluded.classifier_api_key, classifier_model=excluded.classifier_model,
			ai_confidence_threshold=excluded.ai_confidence_threshold`,
		gs.Timezone, encodeInt64s(days), gs.StartTime, gs.EndTime, gs.DefaultSLAThreshold, gs.MaxEscalations,
		gs.EscalationIntervalMin, gs.SLAWarningPercent, encodeStrs(gs.GlobalManagerIDs), gs.ClassifierAPIKey,
		gs.ClassifierModel, gs.AIConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("put global settings: %w", err)
	}
	return nil
}

func (d *DB) ListWorkingSchedule(ctx context.Context, chatID int64) ([]*store.WorkingSchedule, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT chat_id, weekday, start_time, end_time, timezone, is_active
		FROM working_schedule WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list working schedule: %w", err)
	}
	defer rows.Close()
	var out []*store.WorkingSchedule
	for rows.Next() {
		var ws store.WorkingSchedule
		var weekday int
		var isActive int
		if err := rows.Scan(&ws.ChatID, &weekday, &ws.Start, &ws.End, &ws.Timezone, &isActive); err != nil {
			return nil, fmt.Errorf("scan working schedule: %w", err)
		}
		ws.Weekday = time.Weekday(weekday)
		ws.IsActive = isActive != 0
		out = append(out, &ws)
	}
	return out, rows.Err()
}

func (d *DB) ListHolidays(ctx context.Context, chatID int64) ([]*store.Holiday, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT chat_id, date FROM holiday WHERE chat_id = ? OR chat_id = 0`, chatID)
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
