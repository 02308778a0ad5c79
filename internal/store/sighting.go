package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sighting records one recognition of a registered person.
type Sighting struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Name           string    `json:"name"`
	Distance       float64   `json:"distance"`
	TrackingID     *int      `json:"tracking_id,omitempty"`
	SeenAt         time.Time `json:"seen_at"`
}

// SightingRepository provides access to the recognition history.
type SightingRepository struct {
	db *sql.DB
}

// Sightings returns the sighting repository for this store.
func (s *Store) Sightings() *SightingRepository {
	return &SightingRepository{db: s.db}
}

// Create inserts a sighting, assigning an ID and time when empty.
func (r *SightingRepository) Create(s *Sighting) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.SeenAt.IsZero() {
		s.SeenAt = time.Now()
	}

	var registrationID sql.NullString
	if s.RegistrationID != "" {
		registrationID = sql.NullString{String: s.RegistrationID, Valid: true}
	}
	var trackingID sql.NullInt64
	if s.TrackingID != nil {
		trackingID = sql.NullInt64{Int64: int64(*s.TrackingID), Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO sightings (id, registration_id, name, distance, tracking_id, seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, registrationID, s.Name, s.Distance, trackingID, s.SeenAt,
	)
	return err
}

// ListRecent returns up to limit sightings, newest first.
func (r *SightingRepository) ListRecent(limit int) ([]*Sighting, error) {
	return r.query(
		`SELECT id, registration_id, name, distance, tracking_id, seen_at
		 FROM sightings ORDER BY seen_at DESC LIMIT ?`,
		limit,
	)
}

// ListByName returns up to limit sightings of name, newest first.
func (r *SightingRepository) ListByName(name string, limit int) ([]*Sighting, error) {
	return r.query(
		`SELECT id, registration_id, name, distance, tracking_id, seen_at
		 FROM sightings WHERE name = ? ORDER BY seen_at DESC LIMIT ?`,
		name, limit,
	)
}

// LastSeen returns when name was most recently recognised.
func (r *SightingRepository) LastSeen(name string) (time.Time, error) {
	var seenAt time.Time
	err := r.db.QueryRow(
		`SELECT seen_at FROM sightings WHERE name = ? ORDER BY seen_at DESC LIMIT 1`,
		name,
	).Scan(&seenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return seenAt, nil
}

// DeleteOlderThan removes sightings recorded before cutoff.
func (r *SightingRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM sightings WHERE seen_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SightingRepository) query(query string, args ...any) ([]*Sighting, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sightings []*Sighting
	for rows.Next() {
		s := &Sighting{}
		var registrationID sql.NullString
		var trackingID sql.NullInt64
		if err := rows.Scan(&s.ID, &registrationID, &s.Name, &s.Distance, &trackingID, &s.SeenAt); err != nil {
			return nil, err
		}
		s.RegistrationID = registrationID.String
		if trackingID.Valid {
			id := int(trackingID.Int64)
			s.TrackingID = &id
		}
		sightings = append(sightings, s)
	}
	return sightings, rows.Err()
}
