package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nhle/evaldash/internal/model"
)

// Fixture is one entry of a seed file. Type accepts the same spellings as
// model.ParseType. A missing id or timestamp is filled in on insert.
type Fixture struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	SchoolID    string    `json:"school_id"`
	SchoolName  string    `json:"school_name"`
	StudentName string    `json:"student_name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	Archived    bool      `json:"archived"`

	// Recipients limits the fixture to these users. Empty is a broadcast.
	Recipients []string `json:"recipients"`
}

// DecodeFixtures reads a JSON array of fixtures and validates every type
// before anything is inserted.
func DecodeFixtures(r io.Reader) ([]Fixture, error) {
	var fixtures []Fixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("decoding fixtures: %w", err)
	}

	for i, f := range fixtures {
		if _, err := model.ParseType(f.Type); err != nil {
			return nil, fmt.Errorf("fixture %d (%s): %w", i, f.Title, err)
		}
	}
	return fixtures, nil
}

// Seed inserts fixtures in order and returns the ids it created. It stops
// at the first failure.
func Seed(ctx context.Context, s Store, fixtures []Fixture) ([]string, error) {
	ids := make([]string, 0, len(fixtures))
	for i, f := range fixtures {
		t, err := model.ParseType(f.Type)
		if err != nil {
			return ids, fmt.Errorf("fixture %d: %w", i, err)
		}

		id, err := s.CreateNotification(ctx, model.Notification{
			ID:          f.ID,
			Type:        t,
			SchoolID:    f.SchoolID,
			SchoolName:  f.SchoolName,
			StudentName: f.StudentName,
			Title:       f.Title,
			Description: f.Description,
			Icon:        f.Icon,
			Timestamp:   f.Timestamp,
			Read:        f.Read,
			Archived:    f.Archived,
		}, f.Recipients...)
		if err != nil {
			return ids, fmt.Errorf("fixture %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
