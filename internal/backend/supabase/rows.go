package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
)

// ListRows はdemo_dataテーブルの全行をid降順で取得する。
// GET /rest/v1/demo_data?select=*&order=id.desc
// レスポンスがnullの場合はnilスライスを返す。
func (c *Client) ListRows(ctx context.Context, accessToken string) ([]model.Row, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"id.desc"},
	}

	resp, err := c.do(ctx, http.MethodGet, "/rest/v1/"+model.DemoTable, query, accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.expire(accessToken)
		}
		return nil, decodeError(resp)
	}

	var rows []model.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s rows: %w", model.DemoTable, err)
	}
	return rows, nil
}

// compile-time interface check
var _ backend.RowQuerier = (*Client)(nil)
