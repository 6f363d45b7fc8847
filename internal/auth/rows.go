package auth

import (
	"context"
	"net/http"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
	"github.com/hitoshi/demodash/internal/repository"
)

// GuardedRows はセッションを検証してからdemo_dataを読み取るbackend.RowQuerier。
// ホスト型バックエンドの行レベルセキュリティに相当する。
type GuardedRows struct {
	auth *Service
	rows repository.RowRepository
}

// NewGuardedRows はGuardedRowsを生成する。
func NewGuardedRows(auth *Service, rows repository.RowRepository) *GuardedRows {
	return &GuardedRows{auth: auth, rows: rows}
}

// ListRows は有効なセッションがある場合のみ全行をid降順で返す。
func (g *GuardedRows) ListRows(ctx context.Context, accessToken string) ([]model.Row, error) {
	session, err := g.auth.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		g.auth.expire(accessToken)
		return nil, &backend.Error{Status: http.StatusUnauthorized, Code: "PGRST301", Message: "JWT expired"}
	}
	return g.rows.List(ctx)
}

// Backend はセルフホスト構成のbackend.Clientを組み立てる。
func Backend(svc *Service, rows repository.RowRepository) backend.Client {
	return backend.Client{Auth: svc, Rows: NewGuardedRows(svc, rows)}
}

// compile-time interface check
var _ backend.RowQuerier = (*GuardedRows)(nil)
