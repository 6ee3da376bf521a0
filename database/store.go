package database

import (
	"context"
	"errors"

	"github.com/korjavin/newsdigestbot/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a response for the same
	// (user, quiz, question) triple is already stored.
	ErrDuplicate = errors.New("duplicate response")
)

// ResponseStore is the append-only answer log.
type ResponseStore interface {
	Append(ctx context.Context, rec models.ResponseRecord) error
	All(ctx context.Context) ([]models.ResponseRecord, error)
}

// PronunciationStore keeps every voice-practice attempt.
type PronunciationStore interface {
	AppendPronunciation(ctx context.Context, rec models.PronunciationRecord) error
	AllPronunciation(ctx context.Context) ([]models.PronunciationRecord, error)
}

// PostStore maps published message ids to the content they carried.
type PostStore interface {
	SavePost(ctx context.Context, post models.PostRecord) error
	GetPost(ctx context.Context, messageID string) (*models.PostRecord, error)
}
