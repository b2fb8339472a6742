// Package credstore persists the authentication record that outlives process
// restarts: the bearer token and a snapshot of the last known user.
package credstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/errors"
)

// Persisted keys
const (
	KeyAuthToken  = "auth_token"
	KeyUserData   = "user_data"
	KeyUserDigest = "user_data_digest"
)

// AllKeys lists every key written by the session
var AllKeys = []string{KeyAuthToken, KeyUserData, KeyUserDigest}

// ErrCorrupt marks a persisted record that cannot be trusted
var ErrCorrupt = stderrors.New("persisted credentials are corrupt")

// Storage is a durable string key-value store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

// Digest returns the hex BLAKE3 digest stored next to user_data
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveToken persists the bearer token
func SaveToken(ctx context.Context, s Storage, token string) error {
	if err := s.Set(ctx, KeyAuthToken, token); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to save auth token", err)
	}
	return nil
}

// LoadToken returns the persisted bearer token, or "" when there is none
func LoadToken(ctx context.Context, s Storage) (string, error) {
	token, ok, err := s.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreRead, "failed to read auth token", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// SaveUser writes the user snapshot and its digest
func SaveUser(ctx context.Context, s Storage, user *api.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to encode user snapshot", err)
	}
	if err := s.Set(ctx, KeyUserData, string(data)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to save user snapshot", err)
	}
	if err := s.Set(ctx, KeyUserDigest, Digest(data)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to save user snapshot digest", err)
	}
	return nil
}

// LoadUser returns the persisted user snapshot, or nil when there is none.
// An unparseable snapshot or a digest mismatch returns an error wrapping ErrCorrupt.
// Snapshots written without a digest are accepted.
func LoadUser(ctx context.Context, s Storage) (*api.User, error) {
	data, ok, err := s.Get(ctx, KeyUserData)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "failed to read user snapshot", err)
	}
	if !ok {
		return nil, nil
	}

	digest, hasDigest, err := s.Get(ctx, KeyUserDigest)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "failed to read user snapshot digest", err)
	}
	if hasDigest && digest != Digest([]byte(data)) {
		return nil, errors.NewStoreCorruptError(KeyUserData, fmt.Errorf("%w: digest mismatch", ErrCorrupt))
	}

	var user api.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, errors.NewStoreCorruptError(KeyUserData, fmt.Errorf("%w: %v", ErrCorrupt, err))
	}

	return &user, nil
}

// Clear removes every persisted authentication artifact
func Clear(ctx context.Context, s Storage) error {
	if err := s.Remove(ctx, AllKeys...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to clear credentials", err)
	}
	return nil
}

// IsCorrupt reports whether err signals an untrustworthy persisted record
func IsCorrupt(err error) bool {
	return stderrors.Is(err, ErrCorrupt)
}
