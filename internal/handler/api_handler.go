package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/middleware"
	"github.com/hitoshi/demodash/internal/model"
)

// sessionResponse は GET /api/session のレスポンス。
type sessionResponse struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// rowsResponse は GET /api/rows のレスポンス。
type rowsResponse struct {
	Rows []model.Row `json:"rows"`
}

// APIHandler はJSON APIのハンドラー。
// SessionMiddlewareの後に配置する。
type APIHandler struct {
	client backend.Client
	config Config
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(client backend.Client, config Config) *APIHandler {
	return &APIHandler{
		client: client,
		config: config.withDefaults(),
	}
}

// Session は現在のセッション情報を返す。
// GET /api/session
func (h *APIHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	resp := sessionResponse{UserID: session.UserID, Email: session.Email}
	if !session.ExpiresAt.IsZero() {
		exp := session.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Rows はdemo_dataの全行をid降順で返す。
// GET /api/rows
func (h *APIHandler) Rows(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), h.config.BackendTimeout)
	defer cancel()

	view := newView(h.client, middleware.TokenFromRequest(r), h.config, nil)
	defer view.Unmount()

	err := view.Mount(ctx)
	switch _, isBackend := backend.AsError(err); {
	case err == nil:
		rows := view.Snapshot().Rows
		if rows == nil {
			rows = []model.Row{}
		}
		middleware.WriteJSON(w, http.StatusOK, rowsResponse{Rows: rows})
	case isBackend:
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewFetchFailedError())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// クライアントが切断済み
	default:
		middleware.WriteInternalServerError(w)
	}
}
