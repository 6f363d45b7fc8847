package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
)

// tokenResponse はGoTrueのトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// userResponse はGoTrueのユーザー表現。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// accessClaims はアクセストークン（JWT）のクレーム。
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// POST /auth/v1/token?grant_type=password
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	query := url.Values{"grant_type": {"password"}}
	payload := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, "", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("empty access token in response")
	}

	now := c.now()
	session := &model.Session{
		ID:        tok.AccessToken,
		UserID:    tok.User.ID,
		Email:     tok.User.Email,
		ExpiresAt: tokenExpiry(tok, now),
		CreatedAt: now,
	}

	c.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: session})
	return session, nil
}

// GetSession はアクセストークンに対応するセッションを返す。
// JWTシークレットが設定されている場合はローカルで署名と有効期限を検証し、
// 設定されていない場合は GET /auth/v1/user に問い合わせる。
func (c *Client) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if accessToken == "" {
		return nil, nil
	}
	if c.jwtSecret != nil {
		return c.verifyLocally(accessToken)
	}
	return c.fetchUser(ctx, accessToken)
}

// SignOut はセッションを破棄する。
// POST /auth/v1/logout
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return &backend.Error{Status: http.StatusUnauthorized, Code: "session_missing", Message: "Auth session missing!"}
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", url.Values{"scope": {"local"}}, accessToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.expire(accessToken)
		}
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)

	c.Publish(backend.AuthEvent{Kind: backend.EventSignedOut, Session: &model.Session{ID: accessToken}})
	return nil
}

// expire はトークンがプロバイダーに拒否されたことを購読者に通知する。
func (c *Client) expire(accessToken string) {
	c.Publish(backend.AuthEvent{Kind: backend.EventTokenExpired, Session: &model.Session{ID: accessToken}})
}

// verifyLocally はHS256署名のアクセストークンを検証する。
// 署名不正・期限切れのトークンはセッションなしとして扱う。
func (c *Client) verifyLocally(accessToken string) (*model.Session, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims,
		func(t *jwt.Token) (any, error) { return c.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		c.expire(accessToken)
		return nil, nil
	}
	if err != nil {
		slog.Warn("rejected access token", slog.String("error", err.Error()))
		return nil, nil
	}

	return sessionFromClaims(accessToken, claims), nil
}

// fetchUser はGoTrueにトークンのユーザーを問い合わせる。
// GET /auth/v1/user
func (c *Client) fetchUser(ctx context.Context, accessToken string) (*model.Session, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, decodeError(resp)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	// 検証はサーバー側で済んでいるため、有効期限の読み取りだけ行う
	session := &model.Session{ID: accessToken, UserID: user.ID, Email: user.Email}
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err == nil && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
		if claims.IssuedAt != nil {
			session.CreatedAt = claims.IssuedAt.Time
		}
	}
	if session.Expired(c.now()) {
		return nil, nil
	}
	return session, nil
}

func sessionFromClaims(accessToken string, claims accessClaims) *model.Session {
	s := &model.Session{
		ID:     accessToken,
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		s.CreatedAt = claims.IssuedAt.Time
	}
	return s
}

// tokenExpiry はトークンレスポンスから有効期限を算出する。
func tokenExpiry(tok tokenResponse, now time.Time) time.Time {
	if tok.ExpiresAt > 0 {
		return time.Unix(tok.ExpiresAt, 0)
	}
	if tok.ExpiresIn > 0 {
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// compile-time interface check
var _ backend.AuthService = (*Client)(nil)
