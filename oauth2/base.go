package oauth2

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// BaseProvider holds the authorization code flow settings shared by providers.
type BaseProvider struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	oauthConfig  oauth2.Config
}

// NewBaseProvider falls back to OAUTH2_CLIENT_ID, OAUTH2_CLIENT_SECRET and
// OAUTH2_CALLBACK_URL for empty arguments.
func NewBaseProvider(clientId string, clientSecret string, callbackUrl string, endpoint oauth2.Endpoint, scopes ...string) *BaseProvider {
	clientId = envOr(clientId, "OAUTH2_CLIENT_ID")
	clientSecret = envOr(clientSecret, "OAUTH2_CLIENT_SECRET")
	callbackUrl = envOr(callbackUrl, "OAUTH2_CALLBACK_URL")
	return &BaseProvider{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
}

// Config returns the underlying oauth2 configuration.
func (b *BaseProvider) Config() *oauth2.Config {
	return &b.oauthConfig
}

// AuthCodeURL builds the consent page URL with nonce as the state parameter.
func (b *BaseProvider) AuthCodeURL(nonce string) string {
	return b.oauthConfig.AuthCodeURL(nonce, oauth2.AccessTypeOnline)
}

func (b *BaseProvider) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	token, err := b.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return token, nil
}

func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
