package oauth2

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	ac "github.com/interviewhub/authcore"
)

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	*BaseProvider

	// APIEndpoint overrides the Google API base URL. Used by tests.
	APIEndpoint string
}

var _ ac.IdentityProvider = (*GoogleProvider)(nil)

// NewGoogleProvider falls back to OAUTH2_GOOGLE_CLIENT_ID, OAUTH2_GOOGLE_CLIENT_SECRET
// and OAUTH2_GOOGLE_CALLBACK_URL for empty arguments.
func NewGoogleProvider(clientId string, clientSecret string, callbackUrl string) *GoogleProvider {
	clientId = envOr(clientId, "OAUTH2_GOOGLE_CLIENT_ID")
	clientSecret = envOr(clientSecret, "OAUTH2_GOOGLE_CLIENT_SECRET")
	callbackUrl = envOr(callbackUrl, "OAUTH2_GOOGLE_CALLBACK_URL")
	return &GoogleProvider{
		BaseProvider: NewBaseProvider(clientId, clientSecret, callbackUrl, google.Endpoint,
			googleoauth2.UserinfoEmailScope,
			googleoauth2.UserinfoProfileScope,
		),
	}
}

// Exchange trades the code for a token and reads the userinfo endpoint with it.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*ac.FederatedIdentity, error) {
	token, err := g.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(g.oauthConfig.Client(ctx, token))}
	if g.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.APIEndpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}

	return &ac.FederatedIdentity{
		Subject:       info.Id,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}
