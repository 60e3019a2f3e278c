package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"github.com/dmitrijs2005/pilosopo/internal/server/identity"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
)

const noStoreMsg = "Server misconfiguration: No persistence available and identity provider not initialized"

func accountView(a *identity.Account) models.ProfileView {
	v := models.ProfileView{
		ID:       a.UID,
		Username: a.DisplayName,
		Provider: models.ProviderFirebase,
	}
	if v.Username == "" {
		v.Username = models.UsernameFromEmail(a.Email)
	}
	if !a.CreatedAt.IsZero() {
		t := a.CreatedAt
		v.CreatedAt = &t
	}
	return v
}

func profileViews(ps []*models.UserProfile) []models.ProfileView {
	out := make([]models.ProfileView, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.View())
	}
	return out
}

func (s *UserService) accountViews(ctx context.Context) ([]models.ProfileView, error) {
	accounts, err := s.probe.Identity().ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProfileView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView(a))
	}
	return out, nil
}

// ListProfiles returns every profile from the preferred backend, newest
// first when a store answers.
func (s *UserService) ListProfiles(ctx context.Context) ([]models.ProfileView, error) {
	kind, store := s.probe.ResolveStore(backends.List)
	switch {
	case store != nil:
		ps, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		return profileViews(ps), nil
	case kind == backends.Identity:
		return s.accountViews(ctx)
	default:
		return nil, common.Unavailable(noStoreMsg)
	}
}

// GetProfile answers from the first available backend only; other
// backends are not consulted when it reports NotFound.
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.ProfileView, error) {
	kind, store := s.probe.ResolveStore(backends.Read)
	switch {
	case store != nil:
		p, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		v := p.View()
		return &v, nil
	case kind == backends.Identity:
		a, err := s.probe.Identity().GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		v := accountView(a)
		return &v, nil
	default:
		return nil, common.Unavailable(noStoreMsg)
	}
}

// FilterProfiles returns profiles created by provider. In the identity view
// every account is a provider account.
func (s *UserService) FilterProfiles(ctx context.Context, provider string) ([]models.ProfileView, error) {
	if provider == "" {
		return nil, common.Validation("provider query parameter is required")
	}
	kind, store := s.probe.ResolveStore(backends.List)
	switch {
	case store != nil:
		ps, err := store.ListByProvider(ctx, provider)
		if err != nil {
			return nil, err
		}
		return profileViews(ps), nil
	case kind == backends.Identity:
		if provider != models.ProviderFirebase {
			return []models.ProfileView{}, nil
		}
		return s.accountViews(ctx)
	default:
		return nil, common.Unavailable(noStoreMsg)
	}
}

// SortProfilesByUsernameDesc returns all profiles ordered by username, Z to A.
func (s *UserService) SortProfilesByUsernameDesc(ctx context.Context) ([]models.ProfileView, error) {
	kind, store := s.probe.ResolveStore(backends.List)
	switch {
	case store != nil:
		ps, err := store.ListByUsernameDesc(ctx)
		if err != nil {
			return nil, err
		}
		return profileViews(ps), nil
	case kind == backends.Identity:
		views, err := s.accountViews(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(views, func(i, j int) bool { return views[i].Username > views[j].Username })
		return views, nil
	default:
		return nil, common.Unavailable(noStoreMsg)
	}
}

// UpdateRequest carries the updatable fields; empty values are ignored.
type UpdateRequest struct {
	Username           string
	ProfileDescription string
	Settings           map[string]any
	Password           string
}

type UpdateResult struct {
	ID                 string
	Username           string
	ProfileDescription string
	Settings           map[string]any
	UpdatedAt          time.Time
}

// UpdateProfile changes the password on the provider (required when a
// password is given) and rehashes it for local login, mirrors the username to the provider display name on a
// best-effort basis and merges the remaining fields into the preferred store.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req UpdateRequest) (*UpdateResult, error) {
	if req.Username == "" && req.ProfileDescription == "" && req.Password == "" && len(req.Settings) == 0 {
		return nil, common.Validation("No fields to update")
	}

	kind, store := s.probe.ResolveStore(backends.Write)
	if store == nil {
		return nil, common.Unavailable("Server misconfiguration: No persistence available - cannot update user profile")
	}

	provider := s.probe.Identity()
	var hash string
	if req.Password != "" {
		if provider == nil {
			return nil, common.Unavailable("Server misconfiguration: identity provider not initialized - cannot update password")
		}
		var err error
		if hash, err = hashNewPassword(req.Password); err != nil {
			return nil, err
		}
		if err := provider.UpdateAccount(ctx, id, identity.AccountUpdate{Password: &req.Password}); err != nil {
			return nil, err
		}
	}

	if req.Username != "" {
		if provider == nil {
			s.log.Warn(ctx, "identity provider not initialized, skipping display name update", "uid", id)
		} else if err := provider.UpdateAccount(ctx, id, identity.AccountUpdate{DisplayName: &req.Username}); err != nil {
			s.log.Warn(ctx, "display name update failed", "uid", id, "error", err)
		}
	}

	patch := models.ProfilePatch{UpdatedAt: s.now().UTC()}
	if req.Username != "" {
		patch.Username = &req.Username
	}
	if req.ProfileDescription != "" {
		patch.ProfileDescription = &req.ProfileDescription
	}
	if len(req.Settings) > 0 {
		patch.Settings = models.JSONMap(req.Settings)
	}
	if hash != "" {
		patch.PasswordHash = &hash
	}

	if err := store.Update(ctx, id, patch); err != nil {
		s.log.Error(ctx, "profile update failed", "store", kind.String(), "uid", id, "error", err)
		return nil, err
	}

	return &UpdateResult{
		ID:                 id,
		Username:           req.Username,
		ProfileDescription: req.ProfileDescription,
		Settings:           req.Settings,
		UpdatedAt:          patch.UpdatedAt,
	}, nil
}

type DeleteResult struct {
	ID string
}

// DeleteProfile deletes the provider account, then the profile from every
// available store. A store failure after the provider delete is reported as
// a partial failure; the provider account is not restored.
func (s *UserService) DeleteProfile(ctx context.Context, id string) (*DeleteResult, error) {
	provider := s.probe.Identity()
	if provider == nil {
		return nil, common.Unavailable("Server misconfiguration: identity provider not initialized - cannot delete user from auth")
	}

	providerDeleted := true
	if err := provider.DeleteAccount(ctx, id); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		providerDeleted = false
	}

	kinds := s.probe.Stores()
	if len(kinds) == 0 {
		if !providerDeleted {
			return nil, common.NotFound("User not found")
		}
		return nil, &PartialError{
			Err:     common.Unavailable("Server misconfiguration: No persistence available - cannot delete user document"),
			Details: map[string]any{"id": id, "providerDeleted": true},
		}
	}

	deleted := providerDeleted
	for _, k := range kinds {
		store := s.probe.Store(k)
		if store == nil {
			continue
		}
		err := store.Delete(ctx, id)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, common.ErrNotFound):
		case providerDeleted:
			s.log.Error(ctx, "profile delete failed after provider delete", "store", k.String(), "uid", id, "error", err)
			return nil, &PartialError{
				Err:     &common.Error{Kind: common.ErrBackend, Message: "Failed to delete user", Cause: err},
				Details: map[string]any{"id": id, "providerDeleted": true},
			}
		default:
			return nil, err
		}
	}

	if !deleted {
		return nil, common.NotFound("User not found")
	}
	s.log.Info(ctx, "user deleted", "uid", id, "provider_deleted", providerDeleted)
	return &DeleteResult{ID: id}, nil
}
