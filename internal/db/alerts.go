package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-vision/sentinel/internal/alerts"
)

// AlertRecord is a persisted emitted alert.
type AlertRecord struct {
	alerts.Alert
	ID        string    `json:"id"`
	Thread    string    `json:"thread,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordAlert stores an emitted alert and the thread it opened, returning
// the generated alert id.
func (db *DB) RecordAlert(a alerts.Alert, thread alerts.ThreadHandle) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO alerts (alert_id, type, camera_id, confidence, message, ts, thread)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, a.Type, a.CameraID, a.Confidence, a.Message, a.Timestamp, string(thread),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert alert: %w", err)
	}
	return id, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (db *DB) RecentAlerts(limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT alert_id, type, camera_id, confidence, message, ts, thread, created_at
		FROM alerts ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AlertRecord{}
	for rows.Next() {
		var r AlertRecord
		var created string
		if err := rows.Scan(&r.ID, &r.Type, &r.CameraID, &r.Confidence, &r.Message, &r.Timestamp, &r.Thread, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTimestamp(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TypeCount is the number of stored alerts of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// AlertCountsByType counts alerts with ts >= since, most frequent first.
func (db *DB) AlertCountsByType(since float64) ([]TypeCount, error) {
	rows, err := db.Query(
		`SELECT type, COUNT(*) FROM alerts WHERE ts >= ?
		GROUP BY type ORDER BY COUNT(*) DESC, type ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// parseTimestamp accepts both the SQLite CURRENT_TIMESTAMP text form and the
// RFC 3339 form the driver uses when it converts the column itself.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
