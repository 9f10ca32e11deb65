package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/jokbo/internal/model"
)

// GetReview fetches one review.
func (c *Client) GetReview(ctx context.Context, id int64) (*model.Review, error) {
	var r model.Review
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/reviews/%d", id), nil, nil, &r); err != nil {
		return nil, err
	}
	r.CreatedAt = FormatDateTime(r.CreatedAt)
	return &r, nil
}

// CreateReview posts a review for req.MaterialID.
func (c *Client) CreateReview(ctx context.Context, req model.ReviewRequest) (*model.Review, error) {
	var r model.Review
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/reviews", nil, req, &r); err != nil {
		return nil, err
	}
	r.CreatedAt = FormatDateTime(r.CreatedAt)
	r.Author = true
	return &r, nil
}

// UpdateReview changes rating and comment of the caller's review.
func (c *Client) UpdateReview(ctx context.Context, id int64, req model.ReviewRequest) error {
	body := struct {
		Rating  float64 `json:"rating"`
		Comment string  `json:"comment"`
	}{req.Rating, req.Comment}
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/v1/reviews/%d", id), nil, body, nil)
}

// DeleteReview deletes the caller's review.
func (c *Client) DeleteReview(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/reviews/%d", id), nil, nil, nil)
}

// ListReviews returns every review of a material in server order.
func (c *Client) ListReviews(ctx context.Context, materialID int64) ([]model.Review, error) {
	var out []model.Review
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/materials/%d/reviews", materialID), nil, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = FormatDateTime(out[i].CreatedAt)
	}
	if out == nil {
		out = []model.Review{}
	}
	return out, nil
}
