// Package memory is an in-process implementation of the repository methods,
// used by service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository"
)

// Store keeps every entity in maps guarded by one lock.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	emails       map[string]string
	sessions     map[string]*model.Session
	transactions map[string]*model.Transaction
	donations    map[string]*model.Donation
	charities    map[string]model.Charity
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[string]*model.User),
		emails:       make(map[string]string),
		sessions:     make(map[string]*model.Session),
		transactions: make(map[string]*model.Transaction),
		donations:    make(map[string]*model.Donation),
		charities:    make(map[string]model.Charity),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// --- users ---

// CreateUser stores a copy of u. Emails are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.emails[key]; ok {
		return repository.ErrEmailExists
	}
	s.users[u.ID] = copyUser(u)
	s.emails[key] = u.ID
	return nil
}

// GetUserByID returns a copy of the user or repository.ErrUserNotFound.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetUserByEmail looks the user up by lower-cased email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(s.users[id]), nil
}

// UpdateUser replaces the stored user, keeping the email index current.
func (s *Store) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateUserLocked(u)
}

func (s *Store) updateUserLocked(u *model.User) error {
	existing, ok := s.users[u.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	existing.Name = u.Name
	existing.MaaserPercentage = u.MaaserPercentage
	existing.ColorScheme = u.ColorScheme
	existing.ConnectedBanks = append([]string(nil), u.ConnectedBanks...)
	existing.UpdatedAt = u.UpdatedAt
	return nil
}

// SetUserPin stores the PIN hash.
func (s *Store) SetUserPin(_ context.Context, userID, pinHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PinHash = pinHash
	u.UpdatedAt = at
	return nil
}

// ListUsersWithConnections returns users with at least one connected provider, by id.
func (s *Store) ListUsersWithConnections(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.User
	for _, u := range s.users {
		if len(u.ConnectedBanks) > 0 {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- sessions ---

// CreateSession stores a copy of sess.
func (s *Store) CreateSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *sess
	s.sessions[sess.ID] = &c
	return nil
}

// GetSessionsByPrefix returns the active sessions whose token starts with prefix.
func (s *Store) GetSessionsByPrefix(_ context.Context, prefix string, now time.Time) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Session
	for _, sess := range s.sessions {
		if sess.TokenPrefix == prefix && sess.IsActive(now) {
			c := *sess
			out = append(out, &c)
		}
	}
	return out, nil
}

// GetSessionByID returns an unrevoked session or repository.ErrSessionNotFound.
func (s *Store) GetSessionByID(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return nil, repository.ErrSessionNotFound
	}
	c := *sess
	return &c, nil
}

// SetSessionPinVerified records whether the session passed the PIN gate.
func (s *Store) SetSessionPinVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	sess.PinVerified = verified
	return nil
}

// LockOtherSessions clears PinVerified on the user's other live sessions.
func (s *Store) LockOtherSessions(_ context.Context, userID, keepID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID && id != keepID && sess.PinVerified && sess.RevokedAt == nil {
			sess.PinVerified = false
			n++
		}
	}
	return n, nil
}

// TouchSession slides the expiry of an unrevoked session.
func (s *Store) TouchSession(_ context.Context, id string, seenAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok && sess.RevokedAt == nil {
		sess.LastSeenAt = &seenAt
		sess.ExpiresAt = expiresAt
	}
	return nil
}

// RevokeSession marks the session revoked at the given time.
func (s *Store) RevokeSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	sess.RevokedAt = &at
	return nil
}

// DeleteExpiredSessions drops sessions that expired or were revoked before cutoff.
func (s *Store) DeleteExpiredSessions(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) || (sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- transactions ---

// ListTransactions returns the user's transactions in the given order.
func (s *Store) ListTransactions(_ context.Context, userID string, order model.SortOrder) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Transaction{}
	for _, t := range s.transactions {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return less(order, out[i].Date, out[j].Date, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// GetTransaction returns one of the user's transactions or repository.ErrTransactionNotFound.
func (s *Store) GetTransaction(_ context.Context, userID, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTransactionNotFound
	}
	c := *t
	return &c, nil
}

// CreateTransaction stores a copy of t.
func (s *Store) CreateTransaction(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *t
	s.transactions[t.ID] = &c
	return nil
}

// UpdateTransaction replaces a stored transaction of the same owner.
func (s *Store) UpdateTransaction(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return repository.ErrTransactionNotFound
	}
	c := *t
	c.CreatedAt = existing.CreatedAt
	c.SourceID = existing.SourceID
	s.transactions[t.ID] = &c
	return nil
}

// DeleteTransaction reports whether a transaction was removed.
func (s *Store) DeleteTransaction(_ context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.transactions, id)
	return true, nil
}

// UpsertSyncedTransactions inserts or refreshes synced rows keyed by provider and source id.
// It returns how many rows were new.
func (s *Store) UpsertSyncedTransactions(_ context.Context, userID string, txns []*model.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, t := range txns {
		var existing *model.Transaction
		for _, e := range s.transactions {
			if e.UserID == userID && e.SourceID != "" &&
				e.IntegrationProvider == t.IntegrationProvider && e.SourceID == t.SourceID {
				existing = e
				break
			}
		}

		if existing != nil {
			existing.Date = t.Date
			existing.Description = t.Description
			existing.Amount = t.Amount
			existing.Account = t.Account
			existing.Category = t.Category
			existing.UpdatedAt = t.UpdatedAt
			continue
		}

		c := *t
		c.UserID = userID
		s.transactions[c.ID] = &c
		inserted++
	}
	return inserted, nil
}

// --- donations ---

// ListDonations returns the user's donations in the given order.
func (s *Store) ListDonations(_ context.Context, userID string, order model.SortOrder) ([]*model.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Donation{}
	for _, d := range s.donations {
		if d.UserID == userID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return less(order, out[i].Date, out[j].Date, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// CreateDonation stores a copy of d.
func (s *Store) CreateDonation(_ context.Context, d *model.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *d
	s.donations[d.ID] = &c
	return nil
}

// DeleteDonation reports whether a donation was removed.
func (s *Store) DeleteDonation(_ context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.donations[id]
	if !ok || d.UserID != userID {
		return false, nil
	}
	delete(s.donations, id)
	return true, nil
}

// --- charities ---

// ListCharities returns the catalog, recommended first then by name.
func (s *Store) ListCharities(_ context.Context) ([]model.Charity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Charity, 0, len(s.charities))
	for _, c := range s.charities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsRecommended != out[j].IsRecommended {
			return out[i].IsRecommended
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpsertCharities inserts or replaces catalog entries by id.
func (s *Store) UpsertCharities(_ context.Context, charities []model.Charity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range charities {
		s.charities[c.ID] = c
	}
	return nil
}

// --- seeding ---

// SeedLedger inserts the starter rows once per user and reports whether it did.
func (s *Store) SeedLedger(_ context.Context, userID string, txns []*model.Transaction, donations []*model.Donation, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.SeededAt != nil {
		return false, nil
	}
	u.SeededAt = &at
	s.insertStarterLocked(txns, donations)
	return true, nil
}

// ResetLedger restores user settings and replaces the ledger with the given rows.
func (s *Store) ResetLedger(_ context.Context, user *model.User, txns []*model.Transaction, donations []*model.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateUserLocked(user); err != nil {
		return err
	}
	for id, t := range s.transactions {
		if t.UserID == user.ID {
			delete(s.transactions, id)
		}
	}
	for id, d := range s.donations {
		if d.UserID == user.ID {
			delete(s.donations, id)
		}
	}
	at := user.UpdatedAt
	s.users[user.ID].SeededAt = &at
	s.insertStarterLocked(txns, donations)
	return nil
}

func (s *Store) insertStarterLocked(txns []*model.Transaction, donations []*model.Donation) {
	for _, t := range txns {
		c := *t
		s.transactions[c.ID] = &c
	}
	for _, d := range donations {
		c := *d
		s.donations[c.ID] = &c
	}
}

func less(order model.SortOrder, di, dj model.Date, ci, cj time.Time, ii, ij string) bool {
	if order == model.OrderDateAsc {
		di, dj, ci, cj, ii, ij = dj, di, cj, ci, ij, ii
	}
	if !di.Equal(dj.Time) {
		return di.After(dj.Time)
	}
	if !ci.Equal(cj) {
		return ci.After(cj)
	}
	return ii > ij
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.ConnectedBanks = append([]string(nil), u.ConnectedBanks...)
	if u.SeededAt != nil {
		at := *u.SeededAt
		c.SeededAt = &at
	}
	return &c
}
