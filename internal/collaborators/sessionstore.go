package collaborators

import (
	"context"
	"fmt"

	"github.com/coastline/webextract/pkg/models"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/net/publicsuffix"
)

var sessionBucket = []byte("sessions")

// SessionStore is the C10 collaborator adapter persisting authenticated
// browser/cookie sessions across process restarts, backed by an embedded
// bbolt database (no external dependency, single-process durable storage).
type SessionStore struct {
	db *bolt.DB
}

// NewSessionStore opens (or creates) the bbolt file at path.
func NewSessionStore(path string) (*SessionStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("collaborators: open session store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("collaborators: create session bucket: %w", err)
	}
	return &SessionStore{db: db}, nil
}

func (s *SessionStore) Load(_ context.Context, domain string) ([]byte, bool, error) {
	key := registrableDomain(domain)
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		v := b.Get([]byte(key))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("collaborators: load session for %s: %w", domain, err)
	}
	return data, data != nil, nil
}

func (s *SessionStore) Save(_ context.Context, domain string, data []byte) error {
	key := registrableDomain(domain)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("collaborators: save session for %s: %w", domain, err)
	}
	return nil
}

// registrableDomain reduces domain to its eTLD+1 (e.g. "old.reddit.com" ->
// "reddit.com") so subdomains of the same site share one stored session.
// Falls back to domain unchanged when the public suffix list has no match.
func registrableDomain(domain string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return etld1
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

var _ models.SessionStore = (*SessionStore)(nil)
