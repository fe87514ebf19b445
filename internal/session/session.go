package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Session is the subject context the pipeline runs under. It is read once at
// startup and cleared at logout.
type Session struct {
	SubjectID   int    `json:"user_id"`
	DisplayName string `json:"name"`
}

const (
	minSubjectID = 100000
	maxSubjectID = 999999
)

var ErrNotFound = errors.New("no session stored")

// Store persists the session between runs.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

func (s Session) Validate() error {
	if s.SubjectID < minSubjectID || s.SubjectID > maxSubjectID {
		return fmt.Errorf("subject id %d is not a 6-digit number", s.SubjectID)
	}
	return nil
}

// NewSubjectID draws a random 6-digit subject id.
func NewSubjectID() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxSubjectID-minSubjectID+1))
	if err != nil {
		return 0, fmt.Errorf("failed to generate subject id: %w", err)
	}
	return minSubjectID + int(n.Int64()), nil
}

// LoadOrCreate returns the stored session. When none exists a new subject id is
// generated and saved together with displayName.
func LoadOrCreate(ctx context.Context, store Store, displayName string) (Session, error) {
	s, err := store.Load(ctx)
	if err == nil {
		if displayName != "" && displayName != s.DisplayName {
			s.DisplayName = displayName
			if err := store.Save(ctx, s); err != nil {
				return Session{}, err
			}
		}
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	id, err := NewSubjectID()
	if err != nil {
		return Session{}, err
	}
	s = Session{SubjectID: id, DisplayName: displayName}
	if err := store.Save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}
