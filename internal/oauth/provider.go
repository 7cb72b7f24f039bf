package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is Zoom's OAuth token endpoint.
const DefaultTokenURL = "https://zoom.us/oauth/token"

// GrantAccountCredentials is the grant type of Server-to-Server OAuth apps.
const GrantAccountCredentials = "account_credentials"

// Credentials identify a Server-to-Server OAuth app and the account it acts for.
type Credentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// Validate checks that every field is set.
func (c Credentials) Validate() error {
	var missing []error
	if c.AccountID == "" {
		missing = append(missing, errors.New("account id is required"))
	}
	if c.ClientID == "" {
		missing = append(missing, errors.New("client id is required"))
	}
	if c.ClientSecret == "" {
		missing = append(missing, errors.New("client secret is required"))
	}
	return errors.Join(missing...)
}

// LogValue keeps the client secret out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account_id", c.AccountID),
		slog.String("client_id", c.ClientID),
	)
}

// IdentityProvider exchanges app credentials for an access token.
type IdentityProvider interface {
	Exchange(ctx context.Context, creds Credentials) (*oauth2.Token, error)
}

// AccountCredentialsProvider performs the account_credentials grant.
type AccountCredentialsProvider struct {
	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
	// HTTPClient is used for the exchange when set.
	HTTPClient *http.Client
}

// NewAccountCredentialsProvider creates a provider for tokenURL, or the
// Zoom endpoint when tokenURL is empty.
func NewAccountCredentialsProvider(tokenURL string, httpClient *http.Client) *AccountCredentialsProvider {
	return &AccountCredentialsProvider{TokenURL: tokenURL, HTTPClient: httpClient}
}

// Exchange implements IdentityProvider.
func (p *AccountCredentialsProvider) Exchange(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	if err := creds.Validate(); err != nil {
		return nil, &AuthError{AccountID: creds.AccountID, Err: err}
	}

	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		EndpointParams: url.Values{
			"grant_type": {GrantAccountCredentials},
			"account_id": {creds.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}

	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return nil, &AuthError{AccountID: creds.AccountID, Err: fmt.Errorf("token exchange: %w", err)}
	}
	return token, nil
}
