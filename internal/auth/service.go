// Package auth はセルフホスト構成の認証サービスを提供する。
// パスワードはbcryptで検証し、セッションはsessionsテーブルに保存する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
	"github.com/hitoshi/demodash/internal/repository"
)

// MinPasswordLength は登録時に要求するパスワードの最小長。
const MinPasswordLength = 6

// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しない場合のエラー。
var ErrInvalidCredentials = &backend.Error{
	Status:  http.StatusBadRequest,
	Code:    "invalid_credentials",
	Message: "Invalid login credentials",
}

// dummyHash はユーザーが存在しない場合にも比較処理を行うためのハッシュ。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("demodash-dummy-password"), bcrypt.DefaultCost)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int              // セッション有効期間（秒）
	BcryptCost    int              // 0の場合はbcrypt.DefaultCost
	Now           func() time.Time // nilの場合はtime.Now
}

// Service はセルフホスト構成のbackend.AuthService実装。
// サインイン・サインアウトの結果を購読者へ通知する。
type Service struct {
	backend.Broker

	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// SignInWithPassword はメールアドレスとパスワードを検証し、セッションを発行する。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 存在しないユーザーでも応答時間を揃える
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Info("sign-in rejected", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	s.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: session})
	return session, nil
}

// GetSession はアクセストークンに対応する有効なセッションを返す。
// トークンが空、未登録、期限切れの場合はnilを返す。
func (s *Service) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if accessToken == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, accessToken, s.config.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// SignOut はセッションを破棄する。
// セッションが存在しない（期限切れで削除済みを含む）場合はプロバイダーエラーを返す。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return &backend.Error{Status: http.StatusUnauthorized, Code: "session_missing", Message: "Auth session missing!"}
	}

	deleted, err := s.sessionRepo.DeleteByID(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		s.expire(accessToken)
		return &backend.Error{Status: http.StatusUnauthorized, Code: "session_not_found", Message: "session expired"}
	}

	slog.Info("user signed out")
	s.Publish(backend.AuthEvent{Kind: backend.EventSignedOut, Session: &model.Session{ID: accessToken}})
	return nil
}

// expire は期限切れ・削除済みのトークンを検出したことを購読者に通知する。
func (s *Service) expire(accessToken string) {
	if accessToken == "" {
		return
	}
	slog.Info("session expired")
	s.Publish(backend.AuthEvent{Kind: backend.EventTokenExpired, Session: &model.Session{ID: accessToken}})
}

// Register はユーザーを登録する。シード投入で使用する。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user already exists: %s", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.config.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.config.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ backend.AuthService = (*Service)(nil)
