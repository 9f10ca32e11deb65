package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/jokbo/internal/model"
)

// GetMe returns the current user.
func (c *Client) GetMe(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/mypage/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe edits the current user's profile.
func (c *Client) UpdateMe(ctx context.Context, upd model.UserUpdate) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/users/mypage/me", nil, upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Onboard submits major/minor for a new user.
func (c *Client) Onboard(ctx context.Context, req model.Onboarding) (*model.Onboarding, error) {
	var out model.Onboarding
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/users/onboarding", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UsePoints spends points.
func (c *Client) UsePoints(ctx context.Context, req model.PointRequest) (*model.PointEntry, error) {
	return c.pointCall(ctx, http.MethodPost, "/api/v1/users/mypage/points/use", req)
}

// EarnPoints credits points.
func (c *Client) EarnPoints(ctx context.Context, req model.PointRequest) (*model.PointEntry, error) {
	return c.pointCall(ctx, http.MethodPost, "/api/v1/users/mypage/points/earn", req)
}

// PointBalance returns the current balance in Amount.
func (c *Client) PointBalance(ctx context.Context) (*model.PointEntry, error) {
	return c.pointCall(ctx, http.MethodGet, "/api/v1/users/mypage/points/amount", nil)
}

func (c *Client) pointCall(ctx context.Context, method, path string, in any) (*model.PointEntry, error) {
	var p model.PointEntry
	if err := c.doJSON(ctx, method, path, nil, in, &p); err != nil {
		return nil, err
	}
	p.CreatedAt = FormatDateTime(p.CreatedAt)
	return &p, nil
}

// PointHistory returns the caller's ledger entries.
func (c *Client) PointHistory(ctx context.Context) ([]model.PointEntry, error) {
	var out []model.PointEntry
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/mypage/points/history", nil, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = FormatDateTime(out[i].CreatedAt)
	}
	if out == nil {
		out = []model.PointEntry{}
	}
	return out, nil
}

// MyUploads lists materials the caller uploaded.
func (c *Client) MyUploads(ctx context.Context, page int) (*model.MaterialPage, error) {
	return c.getPage(ctx, "/api/v1/me/materials", pageQuery(page))
}

// MyDownloads lists materials the caller purchased.
func (c *Client) MyDownloads(ctx context.Context, page int) (*model.MaterialPage, error) {
	return c.getPage(ctx, "/api/v1/me/downloads", pageQuery(page))
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

// HasPurchased reports whether materialID is in the caller's purchased list. Page 1
// is checked first; the remaining pages are fetched concurrently.
func (c *Client) HasPurchased(ctx context.Context, materialID int64) (bool, error) {
	first, err := c.MyDownloads(ctx, 1)
	if err != nil {
		return false, err
	}
	if containsMaterial(first.Materials, materialID) {
		return true, nil
	}
	total := first.PageInfo.TotalPages
	if total <= 1 {
		return false, nil
	}

	pages := make([]*model.MaterialPage, total+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for p := 2; p <= total; p++ {
		g.Go(func() error {
			pg, err := c.MyDownloads(gctx, p)
			if err != nil {
				return err
			}
			pages[p] = pg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	for _, pg := range pages[2:] {
		if pg != nil && containsMaterial(pg.Materials, materialID) {
			return true, nil
		}
	}
	return false, nil
}

func containsMaterial(ms []model.MaterialSummary, id int64) bool {
	for _, m := range ms {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/logout", nil, nil, nil)
}
