package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/middleware"
	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/rpc"
	"github.com/qaforum/qaforum/services"
	"github.com/qaforum/qaforum/utils"
)

const oauthStateTTL = 10 * time.Minute

// AuthController handles authentication related endpoints including local and third-party providers.
type AuthController struct {
	users *services.UserService
	// endpoints overrides provider endpoints, for tests
	endpoints map[string]oauth2.Endpoint
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{users: users}
}

type tokenResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Session   *services.Session `json:"session"`
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req services.RegisterInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if err := rpc.Validate(req); err != nil {
		utils.Fail(ctx, err)
		return
	}

	user, err := a.users.Register(ctx.Request.Context(), req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	a.issue(ctx, user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req services.LoginInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	if err := rpc.Validate(req); err != nil {
		utils.Fail(ctx, err)
		return
	}

	user, err := a.users.Authenticate(ctx.Request.Context(), req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	a.issue(ctx, user)
}

// Logout invalidates the token by revoking it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, claims, ok := middleware.CurrentToken(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}
	fallback := time.Now().Add(time.Duration(config.Get().TokenTTLHours) * time.Hour)
	utils.RevokeToken(ctx.Request.Context(), token, utils.TokenExpiry(claims, fallback))
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Session returns the caller's session, or null for anonymous callers.
func (a *AuthController) Session(ctx *gin.Context) {
	utils.Respond(ctx, http.StatusOK, 0, "success", middleware.CurrentSession(ctx))
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(ctx.Request.Context(), state, oauthStateTTL)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	utils.Success(ctx, gin.H{"authorizationUrl": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}

	if !utils.ConsumeState(ctx.Request.Context(), state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	identity, err := fetchOAuthIdentity(reqCtx, provider, cfg.Client(reqCtx, token))
	if err != nil {
		utils.Fail(ctx, utils.Internal(50005, "failed to fetch provider profile", err))
		return
	}

	user, err := a.users.FindOrCreateOAuthUser(ctx.Request.Context(), *identity)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	a.issue(ctx, user)
}

func (a *AuthController) issue(ctx *gin.Context, user *models.User) {
	token, expiresAt, err := utils.IssueToken(user.ID, user.Name)
	if err != nil {
		utils.Fail(ctx, utils.Internal(50004, "failed to generate token", err))
		return
	}
	utils.Success(ctx, tokenResponse{Token: token, ExpiresAt: expiresAt, Session: services.SessionFromUser(user)})
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	var oc *oauth2.Config
	switch provider {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		oc = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		oc = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	oc.RedirectURL = fmt.Sprintf("%s/api/auth/oauth/%s/callback", strings.TrimRight(cfg.OAuthRedirectBase, "/"), provider)
	if ep, ok := a.endpoints[provider]; ok {
		oc.Endpoint = ep
	}
	return oc, nil
}

// userInfoURLs are the profile endpoints of each provider.
var userInfoURLs = map[string]string{
	"github":       "https://api.github.com/user",
	"github_email": "https://api.github.com/user/emails",
	"google":       "https://www.googleapis.com/oauth2/v2/userinfo",
}

func fetchOAuthIdentity(ctx context.Context, provider string, client *http.Client) (*services.OAuthIdentity, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, client)
	case "google":
		return fetchGoogleUser(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, client *http.Client) (*services.OAuthIdentity, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, userInfoURLs["github"], &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		email, _ = fetchGitHubEmail(ctx, client)
	}

	return &services.OAuthIdentity{
		Provider:  "github",
		ID:        fmt.Sprintf("%d", payload.ID),
		Login:     payload.Login,
		Email:     email,
		AvatarURL: payload.AvatarURL,
	}, nil
}

func fetchGitHubEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, userInfoURLs["github_email"], &emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*services.OAuthIdentity, error) {
	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, userInfoURLs["google"], &payload); err != nil {
		return nil, err
	}

	login := payload.Name
	if i := strings.IndexByte(payload.Email, '@'); i > 0 {
		login = payload.Email[:i]
	}
	return &services.OAuthIdentity{
		Provider:  "google",
		ID:        payload.ID,
		Login:     login,
		Email:     payload.Email,
		AvatarURL: payload.Picture,
	}, nil
}
