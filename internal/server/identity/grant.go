package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
)

// DefaultGrantEndpoint is the Identity Toolkit password sign-in URL.
const DefaultGrantEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// Provider messages that mean the email/password pair was rejected.
var credentialRejections = map[string]struct{}{
	"EMAIL_NOT_FOUND":           {},
	"INVALID_PASSWORD":          {},
	"INVALID_LOGIN_CREDENTIALS": {},
	"INVALID_EMAIL":             {},
	"USER_DISABLED":             {},
}

// RESTPasswordGrant calls the provider's password-grant endpoint with a web
// API key.
type RESTPasswordGrant struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewRESTPasswordGrant(apiKey string) *RESTPasswordGrant {
	return &RESTPasswordGrant{
		endpoint: DefaultGrantEndpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	Error       *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn verifies the pair. Credential rejections become
// ErrInvalidCredentials, other provider-reported problems ErrValidation and
// transport failures ErrBackend.
func (g *RESTPasswordGrant) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, common.Backend("error encoding sign-in request", err)
	}

	u := g.endpoint + "?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, common.Backend("error building sign-in request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, common.Backend("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, common.Backend("error decoding sign-in response", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	if out.Error != nil {
		code := rejectionCode(out.Error.Message)
		if _, ok := credentialRejections[code]; ok {
			return nil, common.InvalidCredentials("Invalid credentials")
		}
		return nil, common.Validation(out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || out.LocalID == "" {
		return nil, common.Backend("unexpected sign-in response", fmt.Errorf("status %d", resp.StatusCode))
	}

	return &Session{UID: out.LocalID, Email: out.Email, DisplayName: out.DisplayName, IDToken: out.IDToken}, nil
}

// rejectionCode extracts the leading code of messages such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled".
func rejectionCode(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexAny(msg, " :"); i >= 0 {
		return msg[:i]
	}
	return msg
}
