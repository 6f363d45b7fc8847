// Package supabase はホスト型バックエンド（GoTrue認証 + PostgRESTテーブル）のHTTPクライアントを提供する。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/demodash/internal/backend"
)

// maxErrorBody はエラーレスポンスとして読み取る最大バイト数。
const maxErrorBody = 64 * 1024

// Config はホスト型バックエンドへの接続設定。
type Config struct {
	URL       string // プロジェクトURL（例: https://xyz.supabase.co）
	AnonKey   string // 公開APIキー（apikeyヘッダー）
	JWTSecret string // 設定されている場合はアクセストークンをローカルで検証する

	HTTPClient *http.Client
	Now        func() time.Time
}

// Client はホスト型バックエンドのクライアント。
// backend.AuthService と backend.RowQuerier の両方を実装する。
type Client struct {
	backend.Broker

	baseURL   *url.URL
	anonKey   string
	jwtSecret []byte
	http      *http.Client
	now       func() time.Time
}

// New はClientを生成する。URLとAnonKeyは必須。
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase: URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase: anon key is required")
	}

	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("supabase: unsupported URL scheme %q", u.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		baseURL: u,
		anonKey: cfg.AnonKey,
		http:    httpClient,
		now:     now,
	}
	if cfg.JWTSecret != "" {
		c.jwtSecret = []byte(cfg.JWTSecret)
	}
	return c, nil
}

// Backend はこのクライアントを認証・テーブル双方に割り当てた backend.Client を返す。
func (c *Client) Backend() backend.Client {
	return backend.Client{Auth: c, Rows: c}
}

// PingContext は認証サーバーのヘルスエンドポイントで疎通を確認する。
func (c *Client) PingContext(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/health", nil, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supabase health check returned status %d", resp.StatusCode)
	}
	return nil
}

// do はAPIキーと認可ヘッダーを付与してリクエストを送信する。
// bearerが空の場合は匿名キーで認可する。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body any) (*http.Response, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

// errorBody はGoTrue / PostgRESTのエラーレスポンス。
// サービスやバージョンによってメッセージのキーが異なる。
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
}

// decodeError はエラーレスポンスを *backend.Error に変換する。
func decodeError(resp *http.Response) *backend.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	be := &backend.Error{Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		be.Message = strings.TrimSpace(string(raw))
		if be.Message == "" {
			be.Message = http.StatusText(resp.StatusCode)
		}
		return be
	}

	be.Code = body.ErrorCode
	if be.Code == "" && len(body.Code) > 0 && string(body.Code) != "null" {
		be.Code = strings.Trim(string(body.Code), `"`)
	}
	if be.Code == "" {
		be.Code = body.Error
	}

	switch {
	case body.Message != "":
		be.Message = body.Message
	case body.Msg != "":
		be.Message = body.Msg
	case body.ErrorDescription != "":
		be.Message = body.ErrorDescription
	case body.Error != "":
		be.Message = body.Error
	default:
		be.Message = http.StatusText(resp.StatusCode)
	}
	return be
}
