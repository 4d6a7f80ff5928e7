package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sentinel-vision/sentinel/internal/geometry"
)

// Point is an (x, y) pair. Zone polygons use normalized image coordinates.
type Point = geometry.Point

// Zone is a camera's region of interest.
type Zone struct {
	CameraID string  `json:"camera_id"`
	Polygon  []Point `json:"polygon"`
}

// Calibration maps image points to ground-plane points for one camera.
// Matrix is the 3x3 homography solved from Src and Dst.
type Calibration struct {
	CameraID string        `json:"camera_id"`
	Src      []Point       `json:"src"`
	Dst      []Point       `json:"dst"`
	Matrix   [3][3]float64 `json:"matrix"`
}

// SaveZone inserts or replaces the zone for z.CameraID.
func (db *DB) SaveZone(z Zone) error {
	polygon, err := json.Marshal(z.Polygon)
	if err != nil {
		return fmt.Errorf("failed to encode polygon: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO zones (camera_id, polygon) VALUES (?, ?)
		ON CONFLICT(camera_id) DO UPDATE SET polygon = excluded.polygon, updated_at = CURRENT_TIMESTAMP`,
		z.CameraID, string(polygon),
	)
	return err
}

// GetZone returns the zone for cameraID or ErrNotFound.
func (db *DB) GetZone(cameraID string) (*Zone, error) {
	var raw string
	err := db.QueryRow(`SELECT polygon FROM zones WHERE camera_id = ?`, cameraID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	z := &Zone{CameraID: cameraID}
	if err := json.Unmarshal([]byte(raw), &z.Polygon); err != nil {
		return nil, fmt.Errorf("failed to decode polygon for %s: %w", cameraID, err)
	}
	return z, nil
}

// SaveCalibration inserts or replaces the calibration for c.CameraID.
func (db *DB) SaveCalibration(c Calibration) error {
	src, err := json.Marshal(c.Src)
	if err != nil {
		return err
	}
	dst, err := json.Marshal(c.Dst)
	if err != nil {
		return err
	}
	matrix, err := json.Marshal(c.Matrix)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO calibrations (camera_id, src, dst, matrix) VALUES (?, ?, ?, ?)
		ON CONFLICT(camera_id) DO UPDATE SET
			src = excluded.src, dst = excluded.dst, matrix = excluded.matrix,
			updated_at = CURRENT_TIMESTAMP`,
		c.CameraID, string(src), string(dst), string(matrix),
	)
	return err
}

// GetCalibration returns the calibration for cameraID or ErrNotFound.
func (db *DB) GetCalibration(cameraID string) (*Calibration, error) {
	var src, dst, matrix string
	err := db.QueryRow(`SELECT src, dst, matrix FROM calibrations WHERE camera_id = ?`, cameraID).Scan(&src, &dst, &matrix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c := &Calibration{CameraID: cameraID}
	for _, f := range []struct {
		raw string
		dst interface{}
	}{{src, &c.Src}, {dst, &c.Dst}, {matrix, &c.Matrix}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode calibration for %s: %w", cameraID, err)
		}
	}
	return c, nil
}
