package db

import (
	"encoding/json"
	"fmt"
)

// Camera is a registered video source.
type Camera struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	RTSPURL  *string  `json:"rtsp_url"`
	Location *string  `json:"location"`
	Tags     []string `json:"tags"`
}

// CreateCamera registers c under the next free id cam_{n+1}, where n is the
// number of cameras already registered, and returns the stored camera.
func (db *DB) CreateCamera(c Camera) (*Camera, error) {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM cameras`).Scan(&n); err != nil {
		return nil, err
	}
	c.ID = fmt.Sprintf("cam_%d", n+1)
	if _, err := tx.Exec(
		`INSERT INTO cameras (id, name, rtsp_url, location, tags) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.RTSPURL, c.Location, string(tags),
	); err != nil {
		return nil, fmt.Errorf("failed to insert camera %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCameras returns all cameras in registration order.
func (db *DB) ListCameras() ([]Camera, error) {
	rows, err := db.Query(`SELECT id, name, rtsp_url, location, tags FROM cameras ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Camera{}
	for rows.Next() {
		var c Camera
		var tags string
		if err := rows.Scan(&c.ID, &c.Name, &c.RTSPURL, &c.Location, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
