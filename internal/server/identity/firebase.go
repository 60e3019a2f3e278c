package identity

import (
	"context"
	"errors"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"github.com/dmitrijs2005/pilosopo/internal/common"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ErrNoCredentials is returned by NewFirebaseProvider when neither inline
// nor file credentials are configured.
var ErrNoCredentials = errors.New("no service account credentials configured")

// FirebaseProvider implements Provider with the Firebase Admin SDK.
type FirebaseProvider struct {
	client *auth.Client
}

// NewFirebaseProvider initializes the Admin SDK from inline JSON credentials
// or, failing that, a credentials file.
func NewFirebaseProvider(ctx context.Context, credentialsJSON, credentialsFile string) (*FirebaseProvider, error) {
	var opt option.ClientOption
	switch {
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	case credentialsFile != "":
		opt = option.WithCredentialsFile(credentialsFile)
	default:
		return nil, ErrNoCredentials
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return nil, classifyFirebase(err, "error creating account")
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) GetAccount(ctx context.Context, uid string) (*Account, error) {
	rec, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return nil, classifyFirebase(err, "error fetching account")
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, classifyFirebase(err, "error fetching account")
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) UpdateAccount(ctx context.Context, uid string, upd AccountUpdate) error {
	params := &auth.UserToUpdate{}
	if upd.DisplayName != nil {
		params = params.DisplayName(*upd.DisplayName)
	}
	if upd.Password != nil {
		params = params.Password(*upd.Password)
	}
	if _, err := p.client.UpdateUser(ctx, uid, params); err != nil {
		return classifyFirebase(err, "error updating account")
	}
	return nil
}

func (p *FirebaseProvider) DeleteAccount(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return classifyFirebase(err, "error deleting account")
	}
	return nil
}

func (p *FirebaseProvider) ListAccounts(ctx context.Context) ([]*Account, error) {
	var out []*Account
	it := p.client.Users(ctx, "")
	for {
		rec, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyFirebase(err, "error listing accounts")
		}
		out = append(out, toAccount(rec.UserRecord))
	}
	return out, nil
}

func (p *FirebaseProvider) ExchangeToken(ctx context.Context, uid string) (string, error) {
	token, err := p.client.CustomToken(ctx, uid)
	if err != nil {
		return "", classifyFirebase(err, "error minting token")
	}
	return token, nil
}

func toAccount(rec *auth.UserRecord) *Account {
	if rec == nil {
		return nil
	}
	a := &Account{}
	if rec.UserInfo != nil {
		a.UID = rec.UID
		a.Email = rec.Email
		a.DisplayName = rec.DisplayName
	}
	if rec.UserMetadata != nil && rec.UserMetadata.CreationTimestamp > 0 {
		a.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
	}
	return a
}

// classifyFirebase maps Admin SDK errors: a missing user is NotFound, a
// missing project or denied permission is a configuration problem.
func classifyFirebase(err error, msg string) error {
	switch {
	case auth.IsUserNotFound(err):
		return common.NotFound("account not found")
	case errorutils.IsPermissionDenied(err), errorutils.IsNotFound(err), errorutils.IsUnauthenticated(err):
		return common.UnavailableCause("identity provider resource not found or inaccessible", err)
	default:
		return common.Backend(msg, err)
	}
}
