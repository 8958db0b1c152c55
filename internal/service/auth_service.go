package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/vedran77/v3kn/internal/cryptoutil"
	"github.com/vedran77/v3kn/internal/domain"
	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/repository"
	"github.com/vedran77/v3kn/pkg/validator"
)

// AuthService owns the user table and the token cache (C1 + C2): account
// lifecycle, login, and the bearer-token lookup every other handler
// depends on. mu serialises read-modify-write sequences over the user
// table the way account_mutex does in the reference design.
type AuthService struct {
	mu      sync.Mutex
	users   repository.UserRepository
	storage repository.StorageRepository
	log     *logging.Domain

	quotaTotal int64

	tokenMu    sync.RWMutex
	tokenCache map[string]string // token -> npid, write-through cache
}

func NewAuthService(users repository.UserRepository, storage repository.StorageRepository, log *logging.Domain, quotaTotal int64) *AuthService {
	return &AuthService{
		users:      users,
		storage:    storage,
		log:        log,
		quotaTotal: quotaTotal,
		tokenCache: map[string]string{},
	}
}

// WarmTokenCache seeds the in-memory cache from the persisted token
// table at startup and reports how many entries were loaded.
func (s *AuthService) WarmTokenCache(ctx context.Context) (int, error) {
	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return 0, err
	}

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	for token, npid := range table.Tokens {
		s.tokenCache[token] = npid
	}
	return len(s.tokenCache), nil
}

// ResolveToken is the C2 `get_valid_npid` lookup: empty token is missing,
// absent token is invalid.
func (s *AuthService) ResolveToken(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	s.tokenMu.RLock()
	npid, ok := s.tokenCache[token]
	s.tokenMu.RUnlock()
	if !ok {
		return "", ErrInvalidToken
	}
	return npid, nil
}

func (s *AuthService) cacheToken(token, npid string) {
	s.tokenMu.Lock()
	s.tokenCache[token] = npid
	s.tokenMu.Unlock()
}

func (s *AuthService) evictToken(token string) {
	s.tokenMu.Lock()
	delete(s.tokenCache, token)
	s.tokenMu.Unlock()
}

func trimNPID(npid string) string { return strings.TrimSpace(npid) }

func updateRemoteAddr(user *domain.User, remoteAddr string) {
	if remoteAddr == "" {
		return
	}
	for _, a := range user.RemoteAddr {
		if a == remoteAddr {
			return
		}
	}
	user.RemoteAddr = append(user.RemoteAddr, remoteAddr)
}

// CheckConnection reports account age and quota, and refreshes
// last_activity/remote_addr (handle_check_connection in the reference).
func (s *AuthService) CheckConnection(ctx context.Context, npid, remoteAddr string) (createdAt int64, used, total int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	user, ok := table.Users[npid]
	if !ok {
		return 0, 0, 0, ErrUserNotFound
	}

	user.LastActivity = time.Now().Unix()
	updateRemoteAddr(user, remoteAddr)
	if err := s.users.SaveTable(ctx, table); err != nil {
		return 0, 0, 0, err
	}

	return user.CreatedAt, int64(user.QuotaUsed), s.quotaTotal, nil
}

func (s *AuthService) GetQuota(ctx context.Context, npid string) (used, total int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return 0, 0, err
	}
	user, ok := table.Users[npid]
	if !ok {
		return 0, 0, ErrUserNotFound
	}
	return int64(user.QuotaUsed), s.quotaTotal, nil
}

// CreateAccount implements handle_create_account.
func (s *AuthService) CreateAccount(ctx context.Context, npid, passwordB64, remoteAddr string) (token string, err error) {
	npid = trimNPID(npid)
	if !validator.ValidNPID(npid) {
		return "", ErrInvalidNPID
	}
	if passwordB64 == "" {
		return "", ErrMissingPassword
	}
	clientHash, err := cryptoutil.B64Decode(passwordB64)
	if err != nil {
		return "", ErrMissingPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return "", err
	}
	if _, exists := table.Users[npid]; exists {
		return "", ErrUserExists
	}

	salt, err := cryptoutil.GenerateSalt()
	if err != nil {
		return "", err
	}
	hash := cryptoutil.ServerHash(clientHash, salt)
	token, err = cryptoutil.GenerateToken()
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	user := &domain.User{
		NPID:         npid,
		QuotaUsed:    0,
		Password:     cryptoutil.B64Encode(hash),
		Salt:         cryptoutil.B64Encode(salt),
		Token:        token,
		CreatedAt:    now,
		LastLogin:    now,
		LastActivity: now,
		RemoteAddr:   []string{},
	}
	updateRemoteAddr(user, remoteAddr)

	table.Users[npid] = user
	table.Tokens[token] = npid

	if err := s.users.SaveTable(ctx, table); err != nil {
		return "", err
	}
	if err := s.storage.EnsureUserDirs(npid); err != nil {
		return "", err
	}

	s.cacheToken(token, npid)
	s.log.Logf("Account created: %s", npid)
	return token, nil
}

// DeleteAccount implements handle_delete_account.
func (s *AuthService) DeleteAccount(ctx context.Context, npid, passwordB64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return err
	}
	user, ok := table.Users[npid]
	if !ok {
		return ErrUserNotFound
	}
	if !s.verifyPassword(user, passwordB64) {
		return ErrInvalidPassword
	}

	token := user.Token
	delete(table.Tokens, token)
	delete(table.Users, npid)
	if err := s.users.SaveTable(ctx, table); err != nil {
		return err
	}

	s.evictToken(token)
	_ = s.storage.RemoveUser(npid)
	s.log.Logf("Account deleted: %s", npid)
	return nil
}

// Login implements handle_login: the existing token is reused, not
// regenerated.
func (s *AuthService) Login(ctx context.Context, npid, passwordB64, remoteAddr string) (token string, createdAt, used, total int64, err error) {
	npid = trimNPID(npid)
	if npid == "" {
		return "", 0, 0, 0, ErrMissingNPID
	}
	if passwordB64 == "" {
		return "", 0, 0, 0, ErrMissingPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return "", 0, 0, 0, err
	}
	user, ok := table.Users[npid]
	if !ok {
		return "", 0, 0, 0, ErrUserNotFound
	}
	if !s.verifyPassword(user, passwordB64) {
		return "", 0, 0, 0, ErrInvalidPassword
	}

	user.LastLogin = time.Now().Unix()
	user.LastActivity = user.LastLogin
	updateRemoteAddr(user, remoteAddr)
	if err := s.users.SaveTable(ctx, table); err != nil {
		return "", 0, 0, 0, err
	}

	return user.Token, user.CreatedAt, int64(user.QuotaUsed), s.quotaTotal, nil
}

// ChangeNPID implements handle_change_npid, re-keying the user table,
// the token binding, and the on-disk user directory atomically.
func (s *AuthService) ChangeNPID(ctx context.Context, npid, newNPID, remoteAddr string) error {
	newNPID = trimNPID(newNPID)
	if newNPID == "" {
		return ErrMissingNPID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return err
	}
	if _, exists := table.Users[newNPID]; exists {
		return ErrUserExists
	}
	user, ok := table.Users[npid]
	if !ok {
		return ErrUserNotFound
	}

	delete(table.Users, npid)
	user.NPID = newNPID
	user.LastActivity = time.Now().Unix()
	updateRemoteAddr(user, remoteAddr)
	table.Users[newNPID] = user
	table.Tokens[user.Token] = newNPID

	if err := s.users.SaveTable(ctx, table); err != nil {
		return err
	}
	if err := s.storage.RenameUser(npid, newNPID); err != nil {
		return err
	}

	s.cacheToken(user.Token, newNPID)
	s.log.Logf("NPID changed: %s -> %s", npid, newNPID)
	return nil
}

// ChangePassword implements handle_change_password: a fresh salt and a
// fresh token are issued, and the old token is evicted first.
func (s *AuthService) ChangePassword(ctx context.Context, npid, oldPasswordB64, newPasswordB64 string) (newToken string, err error) {
	if oldPasswordB64 == "" {
		return "", ErrMissingOldPassword
	}
	if newPasswordB64 == "" {
		return "", ErrMissingNewPassword
	}
	if oldPasswordB64 == newPasswordB64 {
		return "", ErrSamePassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return "", err
	}
	user, ok := table.Users[npid]
	if !ok {
		return "", ErrUserNotFound
	}
	if !s.verifyPassword(user, oldPasswordB64) {
		return "", ErrInvalidPassword
	}

	newClientHash, err := cryptoutil.B64Decode(newPasswordB64)
	if err != nil {
		return "", ErrMissingNewPassword
	}

	oldToken := user.Token
	delete(table.Tokens, oldToken)

	salt, err := cryptoutil.GenerateSalt()
	if err != nil {
		return "", err
	}
	hash := cryptoutil.ServerHash(newClientHash, salt)
	token, err := cryptoutil.GenerateToken()
	if err != nil {
		return "", err
	}

	user.Salt = cryptoutil.B64Encode(salt)
	user.Password = cryptoutil.B64Encode(hash)
	user.Token = token
	table.Tokens[token] = npid

	if err := s.users.SaveTable(ctx, table); err != nil {
		return "", err
	}

	s.evictToken(oldToken)
	s.cacheToken(token, npid)
	s.log.Logf("Password changed for %s", npid)
	return token, nil
}

func (s *AuthService) verifyPassword(user *domain.User, clientHashB64 string) bool {
	clientHash, err := cryptoutil.B64Decode(clientHashB64)
	if err != nil {
		return false
	}
	salt, err := cryptoutil.B64Decode(user.Salt)
	if err != nil {
		return false
	}
	expected, err := cryptoutil.B64Decode(user.Password)
	if err != nil {
		return false
	}
	got := cryptoutil.ServerHash(clientHash, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// UpdateLastActivity implements update_last_activity, called from the
// account check/quota/avatar handlers and the storage save-info/
// trophies-info/download-file handlers, mirroring the reference's
// account.cpp and storage.cpp call sites.
func (s *AuthService) UpdateLastActivity(ctx context.Context, npid, remoteAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return err
	}
	user, ok := table.Users[npid]
	if !ok {
		return nil
	}
	user.LastActivity = time.Now().Unix()
	updateRemoteAddr(user, remoteAddr)
	return s.users.SaveTable(ctx, table)
}

// ApplyQuotaDelta implements the quota-check-then-write critical section
// of handle_upload_file (C7): negative deltas always succeed; a positive
// delta that would exceed quotaTotal is rejected before any bytes move.
func (s *AuthService) ApplyQuotaDelta(ctx context.Context, npid string, delta int64) (newUsed int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return 0, err
	}
	user, ok := table.Users[npid]
	if !ok {
		return 0, ErrUserNotFound
	}

	used := int64(user.QuotaUsed)
	newUsed = used + delta
	if delta > 0 && newUsed > s.quotaTotal {
		return 0, ErrQuotaExceeded
	}
	if newUsed < 0 {
		newUsed = 0
	}

	user.QuotaUsed = uint64(newUsed)
	user.LastActivity = time.Now().Unix()
	if err := s.users.SaveTable(ctx, table); err != nil {
		return 0, err
	}
	return newUsed, nil
}

// QuotaTotal exposes the configured cap for handlers that need it
// without touching the user table.
func (s *AuthService) QuotaTotal() int64 { return s.quotaTotal }

// Search implements handle_friend_search's user-db scan: case-insensitive
// substring match over every NPID except the requester.
func (s *AuthService) Search(ctx context.Context, query, exclude string, fold func(string) string) ([]string, error) {
	if len(query) < 3 {
		return nil, ErrQueryTooShort
	}

	s.mu.Lock()
	table, err := s.users.LoadTable(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	q := fold(query)
	var out []string
	for npid := range table.Users {
		if npid == exclude {
			continue
		}
		if strings.Contains(fold(npid), q) {
			out = append(out, npid)
		}
	}
	return out, nil
}

func (s *AuthService) Exists(ctx context.Context, npid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.users.LoadTable(ctx)
	if err != nil {
		return false, err
	}
	_, ok := table.Users[npid]
	return ok, nil
}
