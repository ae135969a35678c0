package oauth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	shared "github.com/realronaldrump/workout-app-sub000/pkg"
)

// Token represents the OAuth token structure we care about.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*Token, error)
	ForceRefresh(context.Context) (*Token, error)
}

// FirestoreTokenSource reads the user's stored integration tokens and
// refreshes them against the provider's token endpoint when needed.
type FirestoreTokenSource struct {
	db       shared.Database
	userID   string
	provider string
	tokenURL string
	mu       sync.Mutex
}

func NewFirestoreTokenSource(db shared.Database, userID, provider, tokenURL string) *FirestoreTokenSource {
	return &FirestoreTokenSource{
		db:       db,
		userID:   userID,
		provider: provider,
		tokenURL: tokenURL,
	}
}

// Token returns a token, refreshing it proactively when it expires within
// the next minute.
func (s *FirestoreTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("missing access token for %s", s.provider)
	}
	if tokens.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for %s", s.provider)
	}

	if !tokens.Expiry.IsZero() && time.Now().Add(1*time.Minute).After(tokens.Expiry) {
		return s.refresh(ctx, tokens.RefreshToken, tokens.Scopes)
	}

	return tokens, nil
}

// ForceRefresh forcibly refreshes the token regardless of expiry.
func (s *FirestoreTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for %s", s.provider)
	}
	return s.refresh(ctx, tokens.RefreshToken, tokens.Scopes)
}

func (s *FirestoreTokenSource) stored(ctx context.Context) (*Token, error) {
	user, err := s.db.GetUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.Integrations == nil {
		return nil, fmt.Errorf("user has no integrations linked")
	}
	integration := user.Integrations[s.provider]
	if integration == nil {
		return nil, fmt.Errorf("%s not linked", s.provider)
	}
	return &Token{
		AccessToken:  integration.AccessToken,
		RefreshToken: integration.RefreshToken,
		Expiry:       integration.Expiry,
		Scopes:       integration.GrantedScopes,
	}, nil
}

// refresh exchanges the refresh token for a new token and persists it.
func (s *FirestoreTokenSource) refresh(ctx context.Context, refreshToken string, scopes []string) (*Token, error) {
	clientID, err := s.getSecret("client-id")
	if err != nil {
		return nil, err
	}
	clientSecret, err := s.getSecret("client-secret")
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: s.tokenURL},
	}

	refreshed, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	// Dotted paths so we don't overwrite the whole integration sub-object.
	prefix := "integrations." + s.provider + "."
	updateData := map[string]interface{}{
		prefix + "access_token": refreshed.AccessToken,
		prefix + "expiry":       refreshed.Expiry,
	}
	// Some providers don't rotate refresh tokens; writing the empty response
	// value would wipe the stored one.
	if refreshed.RefreshToken != "" && refreshed.RefreshToken != refreshToken {
		updateData[prefix+"refresh_token"] = refreshed.RefreshToken
	}

	if err := s.db.UpdateUser(ctx, s.userID, updateData); err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}

	newRefreshToken := refreshed.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &Token{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: newRefreshToken,
		Expiry:       refreshed.Expiry,
		Scopes:       scopes,
	}, nil
}

func (s *FirestoreTokenSource) getSecret(keyType string) (string, error) {
	// e.g. "healthsync" + "client-id" -> HEALTHSYNC_CLIENT_ID
	envVarName := strings.ToUpper(strings.ReplaceAll(s.provider, "-", "_")) + "_" + strings.ToUpper(strings.ReplaceAll(keyType, "-", "_"))

	value := os.Getenv(envVarName)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not found", envVarName)
	}
	return value, nil
}
