package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/dbx"
	"github.com/dmitrijs2005/pilosopo/internal/server/identity"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/history"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
)

// --- identity provider ---

type fakeProvider struct {
	accounts  map[string]*identity.Account
	passwords map[string]string
	nextUID   int

	createErr error
	updateErr error
	deleteErr error
	tokenErr  error

	updates []identity.AccountUpdate
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]*identity.Account{}, passwords: map[string]string{}}
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, password, displayName string) (*identity.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextUID++
	a := &identity.Account{UID: fmt.Sprintf("fb-%d", f.nextUID), Email: email, DisplayName: displayName}
	f.accounts[a.UID] = a
	f.passwords[email] = password
	return a, nil
}

func (f *fakeProvider) GetAccount(_ context.Context, uid string) (*identity.Account, error) {
	a, ok := f.accounts[uid]
	if !ok {
		return nil, common.NotFound("user not found")
	}
	return a, nil
}

func (f *fakeProvider) GetAccountByEmail(_ context.Context, email string) (*identity.Account, error) {
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, common.NotFound("user not found")
}

func (f *fakeProvider) UpdateAccount(_ context.Context, uid string, upd identity.AccountUpdate) error {
	f.updates = append(f.updates, upd)
	if f.updateErr != nil {
		return f.updateErr
	}
	acct, ok := f.accounts[uid]
	if !ok {
		return common.NotFound("user not found")
	}
	if upd.Password != nil {
		f.passwords[acct.Email] = *upd.Password
	}
	return nil
}

func (f *fakeProvider) DeleteAccount(_ context.Context, uid string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[uid]; !ok {
		return common.NotFound("user not found")
	}
	delete(f.accounts, uid)
	return nil
}

func (f *fakeProvider) ListAccounts(context.Context) ([]*identity.Account, error) {
	out := make([]*identity.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (f *fakeProvider) ExchangeToken(_ context.Context, uid string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "custom-" + uid, nil
}

// fakeGrant verifies passwords against the accounts of a fakeProvider.
type fakeGrant struct {
	p *fakeProvider
	// idToken overrides the returned session token.
	idToken string
}

func (g *fakeGrant) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	a, err := g.p.GetAccountByEmail(ctx, email)
	if err != nil || g.p.passwords[email] != password {
		return nil, common.InvalidCredentials("Invalid credentials")
	}
	token := g.idToken
	if token == "" {
		token = "id-token-" + a.UID
	}
	return &identity.Session{UID: a.UID, Email: email, IDToken: token}, nil
}

// --- profile store ---

type fakeProfiles struct {
	mu   sync.Mutex
	byID map[string]*models.UserProfile
	// upsert mimics the document store.
	upsert bool

	createErr error
	updateErr error
	deleteErr error
	listErr   error
}

var _ profiles.Repository = (*fakeProfiles)(nil)

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[string]*models.UserProfile{}}
}

func (f *fakeProfiles) Create(_ context.Context, p *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	c := *p
	f.byID[p.ID] = &c
	return nil
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.NotFound("user not found")
	}
	c := *p
	return &c, nil
}

func (f *fakeProfiles) FindByUsername(_ context.Context, username string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Username == username {
			c := *p
			return &c, nil
		}
	}
	return nil, common.NotFound("user not found")
}

func (f *fakeProfiles) all() []*models.UserProfile {
	out := make([]*models.UserProfile, 0, len(f.byID))
	for _, p := range f.byID {
		c := *p
		out = append(out, &c)
	}
	return out
}

func (f *fakeProfiles) List(context.Context) ([]*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.all()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeProfiles) ListByProvider(_ context.Context, provider string) ([]*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.UserProfile
	for _, p := range f.all() {
		if p.Provider == provider {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) ListByUsernameDesc(context.Context) ([]*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all()
	sort.Slice(out, func(i, j int) bool { return out[i].Username > out[j].Username })
	return out, nil
}

func (f *fakeProfiles) Update(_ context.Context, id string, patch models.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.byID[id]
	if !ok {
		if !f.upsert {
			return common.NotFound("user not found")
		}
		p = &models.UserProfile{ID: id}
		f.byID[id] = p
	}
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.ProfileDescription != nil {
		p.ProfileDescription = *patch.ProfileDescription
	}
	if patch.Settings != nil {
		p.Settings = models.MergeSettings(p.Settings, patch.Settings)
	}
	if patch.PasswordHash != nil {
		p.PasswordHash = *patch.PasswordHash
	}
	p.UpdatedAt = patch.UpdatedAt
	return nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return common.NotFound("user not found")
	}
	delete(f.byID, id)
	return nil
}

// --- history store ---

type fakeHistory struct {
	mu      sync.Mutex
	entries []*models.HistoryEntry
	seq     int

	// failIDs makes Create fail for entries with these ids.
	failIDs map[string]error
	// createErr makes every Create fail.
	createErr error
	listErr   error
}

var _ history.Repository = (*fakeHistory)(nil)

func (f *fakeHistory) Create(_ context.Context, e *models.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if err, ok := f.failIDs[e.ID]; ok {
		return err
	}
	f.seq++
	e.ID = fmt.Sprintf("h-%d", f.seq)
	c := *e
	f.entries = append(f.entries, &c)
	return nil
}

func (f *fakeHistory) ListByOwner(_ context.Context, ownerID string) ([]*models.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.HistoryEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].OwnerID == ownerID {
			c := *f.entries[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- record-store connection ---

type fakeRecords struct {
	mu        sync.Mutex
	connected bool
	profiles  *fakeProfiles
	history   *fakeHistory
}

func (f *fakeRecords) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeRecords) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeRecords) MarkLost(_ context.Context, err error) bool {
	if !dbx.IsConnectionError(err) {
		return false
	}
	f.setConnected(false)
	return true
}

func (f *fakeRecords) Profiles() profiles.Repository {
	if !f.Connected() || f.profiles == nil {
		return nil
	}
	return f.profiles
}

func (f *fakeRecords) History() history.Repository {
	if !f.Connected() || f.history == nil {
		return nil
	}
	return f.history
}

type fakeArchive struct {
	mu       sync.Mutex
	archived []*models.HistoryEntry
	err      error
}

func (f *fakeArchive) Archive(_ context.Context, e *models.HistoryEntry, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *e
	f.archived = append(f.archived, &c)
	return f.err
}
