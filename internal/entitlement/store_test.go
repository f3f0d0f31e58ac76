package entitlement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkgrove/linkgrove/internal/logging"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// failingRepository simulates a primary store outage that can be lifted.
type failingRepository struct {
	inner Repository
	down  bool
}

func (r *failingRepository) Save(ctx context.Context, grant Grant) error {
	if r.down {
		return errors.New("primary store unreachable")
	}
	return r.inner.Save(ctx, grant)
}

func (r *failingRepository) Latest(ctx context.Context, userID string) (Grant, error) {
	if r.down {
		return Grant{}, errors.New("primary store unreachable")
	}
	return r.inner.Latest(ctx, userID)
}

func newTestStore(t *testing.T) (*Store, *failingRepository) {
	t.Helper()
	repo := &failingRepository{inner: NewMemoryRepository()}
	local := NewLocalStore(filepath.Join(t.TempDir(), "entitlement.json"))
	return NewStore(repo, local, logging.Discard()), repo
}

func TestGrantAndCurrentGrant(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	grant, err := store.Grant(ctx, "uid-1", "creator", time.Hour)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !grant.ExpiresAt.After(grant.GrantedAt) {
		t.Fatalf("expires_at must follow granted_at: %+v", grant)
	}

	current, err := store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current == nil || current.PlanID != "creator" {
		t.Fatalf("unexpected grant: %+v", current)
	}
}

func TestCurrentGrantRejectsWrongUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Grant(ctx, "uid-1", "creator", time.Hour); err != nil {
		t.Fatalf("grant: %v", err)
	}

	current, err := store.CurrentGrant(ctx, "uid-2")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current != nil {
		t.Fatalf("grant must not leak across users: %+v", current)
	}
}

func TestCurrentGrantExpiryBoundary(t *testing.T) {
	repo := NewMemoryRepository()
	store := NewStore(repo, nil, logging.Discard())
	ctx := context.Background()
	now := time.Now().UTC()

	// Still one second of validity left.
	repo.Save(ctx, Grant{ID: "g1", UserID: "uid-1", PlanID: "creator", GrantedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Second)})
	current, err := store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current == nil {
		t.Fatalf("grant one second before expiry must be valid")
	}

	// Superseding grant already one second past expiry.
	repo.Save(ctx, Grant{ID: "g2", UserID: "uid-1", PlanID: "creator", GrantedAt: now.Add(-time.Minute), ExpiresAt: now.Add(-time.Second)})
	current, err = store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current != nil {
		t.Fatalf("expired grant must read as nil, got %+v", current)
	}
}

func TestGrantFallsBackWhenPrimaryDown(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	repo.down = true

	grant, err := store.Grant(ctx, "uid-1", "pro", time.Hour)
	if err != nil {
		t.Fatalf("grant must succeed via fallback: %v", err)
	}

	current, err := store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current == nil || current.ID != grant.ID {
		t.Fatalf("fallback grant not readable: %+v", current)
	}
}

func TestFallbackReconciledOnRecovery(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	repo.down = true
	if _, err := store.Grant(ctx, "uid-1", "pro", time.Hour); err != nil {
		t.Fatalf("grant: %v", err)
	}

	repo.down = false
	current, err := store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current == nil || current.PlanID != "pro" {
		t.Fatalf("unexpected grant after recovery: %+v", current)
	}

	// The grant must now live in the primary store.
	latest, err := repo.inner.Latest(ctx, "uid-1")
	if err != nil {
		t.Fatalf("primary latest: %v", err)
	}
	if latest.PlanID != "pro" {
		t.Fatalf("fallback grant not reconciled: %+v", latest)
	}
}

func TestReconcileKeepsNewerPrimaryGrant(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	repo.down = true
	if _, err := store.Grant(ctx, "uid-1", "creator", time.Hour); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// A newer grant lands in the primary store while the fallback record
	// still exists.
	repo.down = false
	newer, err := store.Grant(ctx, "uid-1", "pro", time.Hour)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	current, err := store.CurrentGrant(ctx, "uid-1")
	if err != nil {
		t.Fatalf("current grant: %v", err)
	}
	if current == nil || current.ID != newer.ID {
		t.Fatalf("last write must win, got %+v", current)
	}
}

func TestLocalStoreParseFailureReadsAsNoGrant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entitlement.json")
	local := NewLocalStore(path)

	if _, ok := local.Read(); ok {
		t.Fatalf("missing file must read as no grant")
	}

	if err := writeFile(path, "{not json"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := local.Read(); ok {
		t.Fatalf("malformed record must read as no grant")
	}
}
