// Package memstore is an in-process implementation of the credit ledger and
// history store with the same semantics as the Firestore adapter. It backs
// local development (USE_FIRESTORE=false) and tests, and can inject failures.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"

	"github.com/google/uuid"
)

// Operation names accepted by FailOn.
const (
	OpFetchProfile = "fetch_profile"
	OpInitProfile  = "init_profile"
	OpUpdate       = "update_profile"
	OpDeduct       = "deduct"
	OpGrant        = "grant"
	OpList         = "list"
	OpGet          = "get"
	OpSave         = "save"
	OpUpdateDoc    = "update_document"
	OpDelete       = "delete"
	OpDeleteAll    = "delete_all"
)

// ErrInjected is returned by a DeleteAll interrupted through FailDeleteAllAfter.
var ErrInjected = errors.New("memstore: injected failure")

type userRecord struct {
	profile   domain.UserProfile
	documents map[string]domain.GeneratedDocument
}

// Store keeps profiles and documents in memory.
type Store struct {
	mu    sync.Mutex
	users map[string]*userRecord
	now   func() time.Time
	last  time.Time

	failures      map[string]error
	deleteAllStop int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*userRecord),
		now:      time.Now,
		failures: make(map[string]error),
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailDeleteAllAfter makes DeleteAll fail after removing n documents from its
// working copy, exercising the all-or-nothing guarantee. n <= 0 disables it.
func (s *Store) FailDeleteAllAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAllStop = n
}

// PutProfile stores p as-is, replacing any existing profile.
func (s *Store) PutProfile(p domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(p.UID).profile = p
}

// DocumentCount returns how many documents uid has.
func (s *Store) DocumentCount(uid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[uid]; ok {
		return len(u.documents)
	}
	return 0
}

func (s *Store) user(uid string) *userRecord {
	u, ok := s.users[uid]
	if !ok {
		u = &userRecord{documents: make(map[string]domain.GeneratedDocument)}
		s.users[uid] = u
	}
	return u
}

func (s *Store) profileOf(uid string) (*userRecord, error) {
	u, ok := s.users[uid]
	if !ok || u.profile.UID == "" {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: uid}
	}
	return u, nil
}

func (s *Store) fail(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.failures[op]; ok {
		return err
	}
	return nil
}

// ---------- CreditLedger ----------

// InitializeProfile returns the stored profile or creates it.
func (s *Store) InitializeProfile(ctx context.Context, id *domain.Identity) (*domain.UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpInitProfile); err != nil {
		return nil, false, err
	}

	if u, err := s.profileOf(id.UID); err == nil {
		p := u.profile
		return &p, false, nil
	}
	p := domain.NewUserProfile(id, s.now())
	s.user(id.UID).profile = *p
	return p.Clone(), true, nil
}

// FetchProfile returns the stored profile.
func (s *Store) FetchProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpFetchProfile); err != nil {
		return nil, err
	}

	u, err := s.profileOf(uid)
	if err != nil {
		return nil, err
	}
	p := u.profile
	return &p, nil
}

// UpdateProfile sets display name and photo URL.
func (s *Store) UpdateProfile(ctx context.Context, uid string, upd domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpUpdate); err != nil {
		return err
	}

	u, err := s.profileOf(uid)
	if err != nil {
		return err
	}
	u.profile.DisplayName = upd.DisplayName
	u.profile.PhotoURL = upd.PhotoURL
	return nil
}

// Deduct removes one credit when the balance is positive.
func (s *Store) Deduct(ctx context.Context, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpDeduct); err != nil {
		return false, err
	}

	u, err := s.profileOf(uid)
	if err != nil {
		return false, nil
	}
	if u.profile.Credits <= 0 {
		return false, nil
	}
	u.profile.Credits--
	return true, nil
}

// Grant adds credits and moves the profile to the pro plan.
func (s *Store) Grant(ctx context.Context, uid string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpGrant); err != nil {
		return err
	}

	u, err := s.profileOf(uid)
	if err != nil {
		return err
	}
	u.profile.Credits += amount
	u.profile.Plan = domain.PlanPro
	return nil
}

// ---------- HistoryStore ----------

// List returns documents newest first.
func (s *Store) List(ctx context.Context, uid string) ([]domain.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpList); err != nil {
		return nil, err
	}

	u, ok := s.users[uid]
	if !ok {
		return []domain.GeneratedDocument{}, nil
	}
	docs := make([]domain.GeneratedDocument, 0, len(u.documents))
	for _, d := range u.documents {
		docs = append(docs, d)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAtTimestamp.Equal(docs[j].CreatedAtTimestamp) {
			return docs[i].CreatedAtTimestamp.After(docs[j].CreatedAtTimestamp)
		}
		return docs[i].ID > docs[j].ID
	})
	return docs, nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, uid, id string) (*domain.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpGet); err != nil {
		return nil, err
	}

	if u, ok := s.users[uid]; ok {
		if d, ok := u.documents[id]; ok {
			return &d, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "document", ID: id}
}

// Save stores doc under a new id and returns it.
func (s *Store) Save(ctx context.Context, uid string, doc *domain.GeneratedDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpSave); err != nil {
		return "", err
	}

	// Timestamps are kept strictly increasing at Firestore's microsecond
	// precision so saves within the same tick still list in save order.
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts

	d := *doc
	d.ID = uuid.NewString()
	d.CreatedAtTimestamp = ts
	s.user(uid).documents[d.ID] = d
	return d.ID, nil
}

// Update overwrites title, content and date of an existing document.
func (s *Store) Update(ctx context.Context, uid string, doc *domain.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpUpdateDoc); err != nil {
		return err
	}

	u, ok := s.users[uid]
	if !ok {
		return &domain.ErrNotFound{Resource: "document", ID: doc.ID}
	}
	existing, ok := u.documents[doc.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "document", ID: doc.ID}
	}
	existing.Title = doc.Title
	existing.HTMLContent = doc.HTMLContent
	existing.CreatedDate = doc.CreatedDate
	u.documents[doc.ID] = existing
	return nil
}

// Delete removes one document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, uid, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpDelete); err != nil {
		return err
	}

	if u, ok := s.users[uid]; ok {
		delete(u.documents, id)
	}
	return nil
}

// DeleteAll removes every document of uid. Deletions are applied to a working
// copy that only replaces the live set once all of them succeeded.
func (s *Store) DeleteAll(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, OpDeleteAll); err != nil {
		return err
	}

	u, ok := s.users[uid]
	if !ok || len(u.documents) == 0 {
		return nil
	}

	working := make(map[string]domain.GeneratedDocument, len(u.documents))
	for id, d := range u.documents {
		working[id] = d
	}
	deleted := 0
	for id := range working {
		if s.deleteAllStop > 0 && deleted == s.deleteAllStop {
			return ErrInjected
		}
		delete(working, id)
		deleted++
	}
	u.documents = working
	return nil
}
