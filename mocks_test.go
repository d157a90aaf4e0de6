package identity_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	identity "github.com/boxworks/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccountStore implements identity.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	account, _ := args.Get(0).(*identity.Account)
	return account, args.Error(1)
}

func (m *MockAccountStore) FindByID(ctx context.Context, id string) (*identity.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*identity.Account)
	return account, args.Error(1)
}

func (m *MockAccountStore) StoreRefreshTokenHash(ctx context.Context, id string, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockAccountStore) ClearRefreshTokenHash(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountStore) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockAccountStore) UpdateProfile(ctx context.Context, id string, displayName string) error {
	args := m.Called(ctx, id, displayName)
	return args.Error(0)
}

// memAccountStore is a stateful AccountStore for flows that span several
// calls, like refresh rotation.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*identity.Account
}

func newMemAccountStore(accounts ...*identity.Account) *memAccountStore {
	s := &memAccountStore{accounts: map[string]*identity.Account{}}
	for _, a := range accounts {
		s.accounts[a.ID.String()] = a
	}
	return s
}

func (s *memAccountStore) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memAccountStore) FindByID(ctx context.Context, id string) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memAccountStore) StoreRefreshTokenHash(ctx context.Context, id string, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.RefreshTokenHash = hash
	}
	return nil
}

func (s *memAccountStore) ClearRefreshTokenHash(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.RefreshTokenHash = ""
	}
	return nil
}

func (s *memAccountStore) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.PasswordHash = hash
	}
	return nil
}

func (s *memAccountStore) UpdateProfile(ctx context.Context, id string, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.DisplayName = displayName
	}
	return nil
}

// fakeAccounts backs the command handler tests. It embeds the Accounts
// interface so only the methods a handler reaches need real bodies.
type fakeAccounts struct {
	identity.Accounts

	mu       sync.Mutex
	byEmail  map[string]*identity.Account
	byAlias  map[string]*identity.Account
	byToken  map[string]*identity.Account
	created  []*identity.Account
	verified []string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byEmail: map[string]*identity.Account{},
		byAlias: map[string]*identity.Account{},
		byToken: map[string]*identity.Account{},
	}
}

func (f *fakeAccounts) add(a *identity.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index(a)
}

func (f *fakeAccounts) index(a *identity.Account) {
	f.byEmail[strings.ToLower(a.Email)] = a
	if a.BoxAlias != "" {
		f.byAlias[a.BoxAlias] = a
	}
	if a.VerificationToken != "" {
		f.byToken[a.VerificationToken] = a
	}
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byEmail[strings.ToLower(email)]; ok {
		return a, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeAccounts) GetByAlias(ctx context.Context, alias string) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byAlias[alias]; ok {
		return a, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeAccounts) GetByVerificationToken(ctx context.Context, token string) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byToken[token]; ok {
		return a, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeAccounts) AliasExists(ctx context.Context, alias string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byAlias[alias]
	return ok, nil
}

func (f *fakeAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *identity.Account) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[strings.ToLower(account.Email)]; ok {
		return nil, identity.ErrEmailTaken
	}
	f.index(account)
	f.created = append(f.created, account)
	return account, nil
}

func (f *fakeAccounts) Register(ctx context.Context, account *identity.Account) (*identity.Account, error) {
	return f.RegisterTx(ctx, nil, account)
}

func (f *fakeAccounts) MarkEmailVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, a := range f.byToken {
		if a.ID.String() == id {
			a.EmailVerified = true
			a.VerificationToken = ""
			a.VerificationExpires = nil
			delete(f.byToken, token)
		}
	}
	f.verified = append(f.verified, id)
	return nil
}

func (f *fakeAccounts) StoreVerificationToken(ctx context.Context, id string, token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byEmail {
		if a.ID.String() == id {
			if a.VerificationToken != "" {
				delete(f.byToken, a.VerificationToken)
			}
			a.VerificationToken = token
			a.VerificationExpires = &expires
			f.byToken[token] = a
		}
	}
	return nil
}

// fakeRepoManager satisfies identity.RepositoryManager without a database.
// RunInTx hands the callback a zero transaction, which the fakes ignore.
type fakeRepoManager struct {
	accounts *fakeAccounts
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{accounts: newFakeAccounts()}
}

func (m *fakeRepoManager) Validate() error { return nil }

func (m *fakeRepoManager) MustValidate() {}

func (m *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *fakeRepoManager) Accounts() identity.Accounts { return m.accounts }

// capturingMailer records verification sends.
type capturingMailer struct {
	mu     sync.Mutex
	emails []string
	tokens []string
	fail   bool
}

func (m *capturingMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
	if m.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func testConfig() identity.Config {
	return identity.Config{
		AccessTokenSecret:  "access-secret-for-tests",
		RefreshTokenSecret: "refresh-secret-for-tests",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    720 * time.Hour,
		TokenIssuer:        "go-identity-test",
		VerificationTTL:    24 * time.Hour,
		SessionTTL:         168 * time.Hour,
		RefreshCookieName:  "refresh_token",
		BaseURL:            "http://localhost:5000",
	}
}

// recordingContext captures what a handler writes to the response. Methods
// the handlers under test never reach fall through to the nil embedded
// interface and panic, which keeps the fake honest.
// routerContext is embedded under an alias name so the field does not
// collide with the Context() method below.
type routerContext = router.Context

type recordingContext struct {
	routerContext

	locals  map[any]any
	cookies map[string]string
	query   map[string]string
	payload []byte

	status    int
	body      any
	setCookie *router.Cookie
	view      string
	viewBind  any
}

func newRecordingContext() *recordingContext {
	return &recordingContext{
		locals:  map[any]any{},
		cookies: map[string]string{},
		query:   map[string]string{},
	}
}

func (c *recordingContext) Context() context.Context { return context.Background() }

func (c *recordingContext) OriginalURL() string { return "/auth/test" }

func (c *recordingContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *recordingContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *recordingContext) Cookie(cookie *router.Cookie) {
	c.setCookie = cookie
}

func (c *recordingContext) Query(key string, defaultValue ...string) string {
	if v, ok := c.query[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *recordingContext) Bind(i any) error {
	return json.Unmarshal(c.payload, i)
}

func (c *recordingContext) JSON(code int, v any) error {
	c.status = code
	c.body = v
	return nil
}

func (c *recordingContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *recordingContext) Render(name string, bind any, layouts ...string) error {
	c.view = name
	c.viewBind = bind
	return nil
}

func (c *recordingContext) viewContext() router.ViewContext {
	if body, ok := c.body.(router.ViewContext); ok {
		return body
	}
	if bind, ok := c.viewBind.(router.ViewContext); ok {
		return bind
	}
	return router.ViewContext{}
}
