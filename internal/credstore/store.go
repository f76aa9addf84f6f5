// Package credstore persists the bearer token and user profile across
// restarts, under two named keys in a single bolt bucket.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "credentials"
	keyToken   = "token"
	keyProfile = "profile"
)

// ErrNoCredentials means the store holds no usable token/profile pair.
// Partial or unparsable entries read as absence, never as a distinct
// error state; Load removes them so the next read starts clean.
var ErrNoCredentials = errors.New("no stored credentials")

type Profile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the token and profile in one transaction so a reader can
// never observe one slot updated without the other.
func (s *Store) Save(token string, profile Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyToken), []byte(token)); err != nil {
			return err
		}
		return b.Put([]byte(keyProfile), data)
	})
}

// Load returns the stored pair, or ErrNoCredentials when either slot is
// missing or the profile does not decode. Broken pairs are cleared in
// the same transaction.
func (s *Store) Load() (string, Profile, error) {
	var (
		token   string
		profile Profile
		found   bool
	)
	// Update, not View: a broken pair is deleted on the way out, and a
	// returned error would roll that delete back.
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		rawToken := b.Get([]byte(keyToken))
		rawProfile := b.Get([]byte(keyProfile))
		if len(rawToken) == 0 || len(rawProfile) == 0 {
			return clear(b)
		}
		if err := json.Unmarshal(rawProfile, &profile); err != nil {
			return clear(b)
		}
		token = string(rawToken)
		found = true
		return nil
	})
	if err != nil {
		return "", Profile{}, fmt.Errorf("read credential store: %w", err)
	}
	if !found {
		return "", Profile{}, ErrNoCredentials
	}
	return token, profile, nil
}

// Clear removes both slots in one transaction. Absence is not an error.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return clear(b)
	})
}

func clear(b *bbolt.Bucket) error {
	if err := b.Delete([]byte(keyToken)); err != nil {
		return err
	}
	return b.Delete([]byte(keyProfile))
}
