package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/spec-kit/task-management/internal/config"
	"github.com/spec-kit/task-management/internal/domain"
	"github.com/spec-kit/task-management/internal/repository"
)

var (
	ErrUnknownProvider = errors.New("oauth2 provider not configured")
	ErrInvalidState    = errors.New("oauth2 state invalid or expired")
	ErrEmailMissing    = errors.New("email not found from oauth2 provider")
)

// OAuthProvider is a configured authorization code client plus the endpoint
// that describes the logged in user.
type OAuthProvider struct {
	Name        string
	Kind        domain.AuthProvider
	Config      *oauth2.Config
	UserInfoURL string
}

// ProvidersFromConfig builds the well-known provider clients that have credentials.
func ProvidersFromConfig(cfg config.OAuth2Config) []OAuthProvider {
	var providers []OAuthProvider
	for name, creds := range cfg.Providers {
		p := OAuthProvider{
			Name: name,
			Config: &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				RedirectURL:  cfg.BaseURL + "/oauth2/callback/" + name,
			},
		}
		switch name {
		case "google":
			p.Kind = domain.AuthProviderGoogle
			p.Config.Endpoint = endpoints.Google
			p.Config.Scopes = []string{"openid", "email", "profile"}
			p.UserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
		case "github":
			p.Kind = domain.AuthProviderGitHub
			p.Config.Endpoint = endpoints.GitHub
			p.Config.Scopes = []string{"read:user", "user:email"}
			p.UserInfoURL = "https://api.github.com/user"
		case "microsoft":
			p.Kind = domain.AuthProviderMicrosoft
			p.Config.Endpoint = endpoints.AzureAD(creds.TenantID)
			p.Config.Scopes = []string{"openid", "email", "profile", "User.Read"}
			p.UserInfoURL = "https://graph.microsoft.com/oidc/userinfo"
		default:
			continue
		}
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	return providers
}

// StateStore keeps issued state values until the callback redeems them once.
type StateStore interface {
	Save(ctx context.Context, state, provider string, ttl time.Duration) error
	// Consume returns the provider the state was issued for and forgets it.
	Consume(ctx context.Context, state string) (string, error)
}

// RedisStateStore stores OAuth2 state in Redis with an expiry.
type RedisStateStore struct {
	client redis.UniversalClient
}

// NewRedisStateStore builds a store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateKey(state string) string {
	return "oauth2:state:" + state
}

func (s *RedisStateStore) Save(ctx context.Context, state, provider string, ttl time.Duration) error {
	return s.client.Set(ctx, stateKey(state), provider, ttl).Err()
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, error) {
	provider, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	return provider, err
}

// OAuthProfile is the provider-neutral view of a user-info document.
type OAuthProfile struct {
	ID       string
	Email    string
	Name     string
	ImageURL string
}

// MapUserInfo reads the common claim names used by OIDC, GitHub and Graph.
func MapUserInfo(attrs map[string]any) OAuthProfile {
	return OAuthProfile{
		ID:       firstClaim(attrs, "sub", "id", "oid"),
		Email:    firstClaim(attrs, "email", "mail", "preferred_username", "userPrincipalName"),
		Name:     firstClaim(attrs, "name", "login", "displayName"),
		ImageURL: firstClaim(attrs, "picture", "avatar_url"),
	}
}

func firstClaim(attrs map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := attrs[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// OAuthService runs the authorization code login flow.
type OAuthService struct {
	providers map[string]OAuthProvider
	order     []string
	baseURL   string
	states    StateStore
	stateTTL  time.Duration
	users     repository.UserRepository
	logger    *zap.Logger
}

// OAuthDependencies bundles the service requirements.
type OAuthDependencies struct {
	Providers []OAuthProvider
	BaseURL   string
	States    StateStore
	StateTTL  time.Duration
	UserRepo  repository.UserRepository
	Logger    *zap.Logger
}

// NewOAuthService builds the service.
func NewOAuthService(deps OAuthDependencies) *OAuthService {
	s := &OAuthService{
		providers: make(map[string]OAuthProvider, len(deps.Providers)),
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
		states:    deps.States,
		stateTTL:  deps.StateTTL,
		users:     deps.UserRepo,
		logger:    deps.Logger,
	}
	if s.stateTTL <= 0 {
		s.stateTTL = 10 * time.Minute
	}
	for _, p := range deps.Providers {
		s.providers[p.Name] = p
		s.order = append(s.order, p.Name)
	}
	return s
}

// Providers maps each configured provider to the URL that starts its login.
func (s *OAuthService) Providers() map[string]string {
	out := make(map[string]string, len(s.order))
	for _, name := range s.order {
		out[name] = s.baseURL + "/oauth2/authorization/" + name
	}
	return out
}

// AuthCodeURL issues a fresh state and returns the provider consent URL.
func (s *OAuthService) AuthCodeURL(ctx context.Context, provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	state := uuid.NewString()
	if err := s.states.Save(ctx, state, provider, s.stateTTL); err != nil {
		return "", fmt.Errorf("save oauth2 state: %w", err)
	}
	return p.Config.AuthCodeURL(state), nil
}

// Complete redeems the callback and returns the local account, creating it on first login.
func (s *OAuthService) Complete(ctx context.Context, provider, state, code string) (*domain.User, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	issuedFor, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if issuedFor != provider {
		return nil, ErrInvalidState
	}

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code with %s: %w", provider, err)
	}
	attrs, err := fetchUserInfo(ctx, p.Config.Client(ctx, token), p.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s user info: %w", provider, err)
	}

	profile := MapUserInfo(attrs)
	if profile.Email == "" {
		return nil, ErrEmailMissing
	}
	return s.upsert(ctx, p.Kind, profile)
}

func fetchUserInfo(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	attrs := map[string]any{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (s *OAuthService) upsert(ctx context.Context, kind domain.AuthProvider, profile OAuthProfile) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		existing.Name = profile.Name
		existing.ImageURL = profile.ImageURL
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	username, err := s.uniqueUsername(ctx, usernameBase(profile.Email, kind))
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:   username,
		Email:      profile.Email,
		Name:       profile.Name,
		Provider:   kind,
		ProviderID: profile.ID,
		ImageURL:   profile.ImageURL,
		Roles:      []string{domain.RoleUser},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("oauth2 user registered", zap.String("username", username), zap.String("provider", string(kind)))
	return user, nil
}

// Local signup accepts usernames of this length; generated ones follow suit.
const (
	minUsernameLen = 3
	maxUsernameLen = 20
)

// usernameBase keeps the ASCII letters, digits, dots, dashes and underscores of
// the e-mail local part, falling back to a provider-derived name when too little is left.
func usernameBase(email string, kind domain.AuthProvider) string {
	local, _, _ := strings.Cut(email, "@")
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return -1
	}, local)
	if len(base) < minUsernameLen {
		base = "user"
		if kind != "" {
			base = strings.ToLower(string(kind)) + "_user"
		}
	}
	if len(base) > maxUsernameLen {
		base = base[:maxUsernameLen]
	}
	return base
}

// uniqueUsername appends 1, 2, ... to base on collision, trimming base so the
// result stays within maxUsernameLen.
func (s *OAuthService) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := s.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := strconv.Itoa(counter)
		trimmed := base
		if len(trimmed)+len(suffix) > maxUsernameLen {
			trimmed = trimmed[:maxUsernameLen-len(suffix)]
		}
		candidate = trimmed + suffix
	}
}
