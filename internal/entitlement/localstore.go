package entitlement

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalStoreKey is the well-known key under which the fallback grant record
// is persisted.
const LocalStoreKey = "linkgrove.entitlement"

// localRecord is the on-disk shape. Timestamps are ISO8601 strings so the
// record stays readable by other tooling.
type localRecord struct {
	Key       string `json:"key"`
	UserID    string `json:"userId"`
	PlanID    string `json:"planId"`
	GrantID   string `json:"grantId"`
	GrantedAt string `json:"grantedAt"`
	ExpiresAt string `json:"expiresAt"`
}

// LocalStore is the device-local fallback for grants when the primary store
// is unreachable. It holds at most one record under LocalStoreKey; readers
// treat a missing file or parse failure as "no grant".
type LocalStore struct {
	mu   sync.Mutex
	path string
}

// NewLocalStore builds a file-backed fallback store at the given path.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Write persists the grant, replacing any previous record.
func (s *LocalStore) Write(grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := localRecord{
		Key:       LocalStoreKey,
		UserID:    grant.UserID,
		PlanID:    grant.PlanID,
		GrantID:   grant.ID,
		GrantedAt: grant.GrantedAt.UTC().Format(time.RFC3339),
		ExpiresAt: grant.ExpiresAt.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Read returns the stored grant, if any. A missing file, a foreign key, or
// malformed content all read as "no grant".
func (s *LocalStore) Read() (Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		return Grant{}, false
	}

	var rec localRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Grant{}, false
	}
	if rec.Key != LocalStoreKey {
		return Grant{}, false
	}

	grantedAt, err := time.Parse(time.RFC3339, rec.GrantedAt)
	if err != nil {
		return Grant{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339, rec.ExpiresAt)
	if err != nil {
		return Grant{}, false
	}

	return Grant{
		ID:        rec.GrantID,
		UserID:    rec.UserID,
		PlanID:    rec.PlanID,
		GrantedAt: grantedAt,
		ExpiresAt: expiresAt,
	}, true
}

// Clear removes the stored record.
func (s *LocalStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path)
}
