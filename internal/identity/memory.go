package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memUser struct {
	Identity
	passwordHash string
}

type memRecovery struct {
	userID string
	secret string
}

// Memory is an in-process Provider used by tests and the memory driver.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]*memUser
	byEmail     map[string]string
	sessions    map[string]Session
	memberships []Membership
	recoveries  map[string]memRecovery
	now         func() time.Time
	sessionTTL  time.Duration
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]*memUser),
		byEmail:    make(map[string]string),
		sessions:   make(map[string]Session),
		recoveries: make(map[string]memRecovery),
		now:        time.Now,
		sessionTTL: 24 * time.Hour,
	}
}

// Put stores an identity with its password, replacing any previous one.
// An empty password leaves the account unable to log in.
func (m *Memory) Put(id Identity, password string) {
	hash, _ := HashPassword(password)
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[id.ID]; ok {
		delete(m.byEmail, strings.ToLower(prev.Email))
	}
	m.users[id.ID] = &memUser{Identity: id, passwordHash: hash}
	if id.Email != "" {
		m.byEmail[strings.ToLower(id.Email)] = id.ID
	}
}

// AddMembership registers a team membership.
func (m *Memory) AddMembership(ms Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms.ID == "" {
		ms.ID = randomToken(8)
	}
	m.memberships = append(m.memberships, ms)
}

// IssueSession creates a session secret for userID without a password check.
func (m *Memory) IssueSession(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(userID).Secret
}

// Recovery returns the outstanding recovery secret for userID, if any.
func (m *Memory) Recovery(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.recoveries {
		if r.userID == userID {
			return r.secret, true
		}
	}
	return "", false
}

func (m *Memory) issueLocked(userID string) Session {
	s := Session{
		ID:        randomToken(8),
		UserID:    userID,
		Secret:    randomToken(24),
		ExpiresAt: m.now().Add(m.sessionTTL),
	}
	m.sessions[s.Secret] = s
	return s
}

// Authenticate accepts a session secret or a JWT equal to a session secret.
func (m *Memory) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, err := m.callerLocked(creds)
	if err != nil {
		return Identity{}, err
	}
	return u.Identity, nil
}

func (m *Memory) callerLocked(creds Credentials) (*memUser, error) {
	secret := strings.TrimSpace(creds.JWT)
	if secret == "" {
		secret = strings.TrimSpace(creds.Session)
	}
	if secret == "" {
		return nil, ErrUnauthenticated
	}
	s, ok := m.sessions[secret]
	if !ok || m.now().After(s.ExpiresAt) {
		return nil, ErrUnauthenticated
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

func (m *Memory) Memberships(ctx context.Context, creds Credentials, teamID, userID string) ([]Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.callerLocked(creds); err != nil {
		return nil, err
	}
	var out []Membership
	for _, ms := range m.memberships {
		if ms.TeamID == teamID && ms.UserID == userID {
			ms.Roles = append([]string(nil), ms.Roles...)
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *Memory) CreateIdentity(ctx context.Context, in NewIdentity) (Identity, error) {
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.Email) == "" {
		return Identity{}, fmt.Errorf("%w: id and email are required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return Identity{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Identity{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[in.ID]; ok {
		return Identity{}, fmt.Errorf("%w: id %s", ErrConflict, in.ID)
	}
	if _, ok := m.byEmail[strings.ToLower(in.Email)]; ok {
		return Identity{}, fmt.Errorf("%w: email %s", ErrConflict, in.Email)
	}
	id := Identity{ID: in.ID, Email: in.Email, Name: in.Name, Phone: in.Phone, Enabled: true}
	m.users[in.ID] = &memUser{Identity: id, passwordHash: hash}
	m.byEmail[strings.ToLower(in.Email)] = in.ID
	return id, nil
}

// SetEnabled blocks or unblocks password logins. Existing sessions stay valid
// so the staff record status decides what they may do.
func (m *Memory) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Enabled = enabled
	return nil
}

func (m *Memory) Login(ctx context.Context, email, password string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	u := m.users[id]
	if VerifyPassword(u.passwordHash, password) != nil || !u.Enabled {
		return Session{}, ErrUnauthenticated
	}
	return m.issueLocked(id), nil
}

func (m *Memory) Logout(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret := strings.TrimSpace(creds.Session)
	if secret == "" {
		secret = strings.TrimSpace(creds.JWT)
	}
	if _, ok := m.sessions[secret]; !ok {
		return ErrUnauthenticated
	}
	delete(m.sessions, secret)
	return nil
}

func (m *Memory) CreateRecovery(ctx context.Context, email, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return ErrNotFound
	}
	secret := randomToken(16)
	m.recoveries[secret] = memRecovery{userID: id, secret: secret}
	return nil
}

func (m *Memory) CompleteRecovery(ctx context.Context, userID, secret, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recoveries[secret]
	if !ok || r.userID != userID {
		return ErrUnauthenticated
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.passwordHash = hash
	delete(m.recoveries, secret)
	return nil
}

func (m *Memory) UpdateName(ctx context.Context, creds Credentials, name string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.callerLocked(creds)
	if err != nil {
		return Identity{}, err
	}
	u.Name = name
	return u.Identity, nil
}

func (m *Memory) UpdatePassword(ctx context.Context, creds Credentials, password, oldPassword string) (Identity, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.callerLocked(creds)
	if err != nil {
		return Identity{}, err
	}
	if VerifyPassword(u.passwordHash, oldPassword) != nil {
		return Identity{}, ErrUnauthenticated
	}
	u.passwordHash = hash
	return u.Identity, nil
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("identity: read random: %v", err))
	}
	return hex.EncodeToString(buf)
}
