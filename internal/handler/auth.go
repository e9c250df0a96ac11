package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"VidFlow/internal/models"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/response"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	sessionStateKey = "oauth_state"
	sessionNextKey  = "oauth_next"
	authErrorPath   = "/auth/auth-code-error"
)

// Identity is what the provider tells us about the signed-in account.
type Identity struct {
	Email     string
	Name      string
	AvatarURL string
}

// IdentityProvider runs the authorization-code flow.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with Google OAuth2.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" {
		return nil, errors.ConfigMissing("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		return nil, errors.ConfigMissing("GOOGLE_CLIENT_SECRET")
	}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GoogleUserInfoURL,
		timeout:     30 * time.Second,
	}, nil
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "exchange authorization code")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "fetch user info")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "read user info")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Upstream("google userinfo", resp.StatusCode, "")
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.WrapCode(err, errors.CodeParse, "decode user info")
	}
	return &Identity{Email: info.Email, Name: info.Name, AvatarURL: info.Picture}, nil
}

func (h *Handlers) handleLogin(c *gin.Context) {
	if h.deps.Identity == nil {
		h.unavailable(c, "auth", "GOOGLE_CLIENT_ID")
		return
	}
	state := uuid.NewString()
	s := sessions.Default(c)
	s.Set(sessionStateKey, state)
	s.Set(sessionNextKey, safeNext(c.Query("next")))
	if err := s.Save(); err != nil {
		h.fail(c, errors.Wrap(err, "save session"))
		return
	}
	c.Redirect(http.StatusFound, h.deps.Identity.AuthCodeURL(state))
}

// handleAuthCallback 交换授权码，按邮箱 upsert 用户并登录
func (h *Handlers) handleAuthCallback(c *gin.Context) {
	s := sessions.Default(c)
	expected, _ := s.Get(sessionStateKey).(string)
	next, _ := s.Get(sessionNextKey).(string)
	s.Delete(sessionStateKey)
	s.Delete(sessionNextKey)
	_ = s.Save()
	if q := c.Query("next"); q != "" {
		next = safeNext(q)
	}
	if next == "" {
		next = "/"
	}

	code := c.Query("code")
	if code == "" || h.deps.Identity == nil || expected == "" || c.Query("state") != expected {
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}

	id, err := h.deps.Identity.Exchange(c.Request.Context(), code)
	if err != nil {
		logger.Warn("auth callback exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}
	if id.Email == "" {
		logger.Warn("auth callback without email")
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}

	user, err := models.UpsertUserByEmail(h.db, id.Email, id.Name, id.AvatarURL)
	if err != nil {
		logger.Error("upsert user", zap.String("email", id.Email), zap.Error(err))
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}
	if err := models.Login(c, user); err != nil {
		logger.Error("login session", zap.Uint("user", user.ID), zap.Error(err))
		c.Redirect(http.StatusFound, authErrorPath)
		return
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handlers) handleLogout(c *gin.Context) {
	if err := models.Logout(c); err != nil {
		h.fail(c, errors.Wrap(err, "logout"))
		return
	}
	response.Success(c, "logout success", nil)
}

func (h *Handlers) handleUserInfo(c *gin.Context) {
	response.Success(c, "user info", models.CurrentUser(c))
}

// safeNext keeps only same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
