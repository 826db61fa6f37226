package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/signature"
)

// DayKeyLayout formats a calendar day as DDMMYYYY.
const DayKeyLayout = "02012006"

const envelopeVersion = 1

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Record is one cached authority answer.
type Record struct {
	Scheme   signature.Scheme
	Proof    signature.Proof
	Body     []byte
	StoredAt time.Time
}

// Store persists one Record per key.
type Store interface {
	// Write replaces the record for key. Proof and body are stored together
	// or not at all.
	Write(ctx context.Context, key string, rec Record) error
	// Read returns the record for key, or false when there is no usable
	// record. Storage faults are reported as absent.
	Read(ctx context.Context, key string) (Record, bool)
}

// Pruner removes records for days before a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// DayKey returns the cache key for the calendar day of t.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDayKey returns midnight UTC of the day named by key.
func ParseDayKey(key string) (time.Time, error) {
	return time.Parse(DayKeyLayout, key)
}

// ValidateKey rejects keys that are unsafe to use as file names or
// redis key suffixes.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidCacheKey, key)
	}
	return nil
}

// expired reports whether key names a day strictly before cutoff's day.
// Keys that are not day keys never expire.
func expired(key string, cutoff time.Time) bool {
	day, err := ParseDayKey(key)
	if err != nil {
		return false
	}
	y, m, d := cutoff.Date()
	return day.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

type envelope struct {
	Version  int              `json:"version"`
	Scheme   signature.Scheme `json:"scheme"`
	Proof    signature.Proof  `json:"proof"`
	Body     []byte           `json:"body"`
	StoredAt time.Time        `json:"stored_at"`
}

var errIncompleteRecord = errors.New("incomplete cache record")

func encodeRecord(rec Record) ([]byte, error) {
	if len(rec.Body) == 0 || rec.Proof.IsZero() {
		return nil, errIncompleteRecord
	}
	return json.Marshal(envelope{
		Version:  envelopeVersion,
		Scheme:   rec.Scheme,
		Proof:    rec.Proof,
		Body:     rec.Body,
		StoredAt: rec.StoredAt.UTC(),
	})
}

func decodeRecord(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("decode cache record: %w", err)
	}
	if env.Version != envelopeVersion {
		return Record{}, fmt.Errorf("unsupported cache record version %d", env.Version)
	}
	if len(env.Body) == 0 || env.Proof.IsZero() {
		return Record{}, errIncompleteRecord
	}
	return Record{
		Scheme:   env.Scheme,
		Proof:    env.Proof,
		Body:     env.Body,
		StoredAt: env.StoredAt,
	}, nil
}
