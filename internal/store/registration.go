package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Registration records one enrolment of a person into the gallery.
type Registration struct {
	ID        string
	Name      string
	Samples   int
	CreatedAt time.Time
}

// RegistrationRepository provides access to enrolment records.
type RegistrationRepository struct {
	db *sql.DB
}

// Registrations returns the registration repository for this store.
func (s *Store) Registrations() *RegistrationRepository {
	return &RegistrationRepository{db: s.db}
}

// Create inserts a registration, assigning an ID when empty.
func (r *RegistrationRepository) Create(reg *Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	if reg.Samples <= 0 {
		reg.Samples = 1
	}
	reg.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO registrations (id, name, samples, created_at) VALUES (?, ?, ?, ?)`,
		reg.ID, reg.Name, reg.Samples, reg.CreatedAt,
	)
	return err
}

// Latest returns the most recent registration for name.
func (r *RegistrationRepository) Latest(name string) (*Registration, error) {
	reg := &Registration{}
	err := r.db.QueryRow(
		`SELECT id, name, samples, created_at FROM registrations
		 WHERE name = ? ORDER BY created_at DESC LIMIT 1`,
		name,
	).Scan(&reg.ID, &reg.Name, &reg.Samples, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

// DeleteByName removes every registration for name. Sightings keep their
// rows with the registration reference cleared.
func (r *RegistrationRepository) DeleteByName(name string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM registrations WHERE name = ?`, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
