package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

// Localized download failures shown to the user.
const (
	msgDownloadUnknown = "알 수 없는 다운로드 오류가 발생했습니다."
	msgDownloadNetwork = "네트워크 오류가 발생했습니다."
)

// GetMaterial fetches a material with its attachments.
func (c *Client) GetMaterial(ctx context.Context, id int64) (*model.Material, error) {
	var m model.Material
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/materials/%d", id), nil, nil, &m); err != nil {
		return nil, err
	}
	m.CreatedAt = FormatDateTime(m.CreatedAt)
	m.UpdatedAt = FormatDateTime(m.UpdatedAt)
	return &m, nil
}

// ListMaterials fetches one page of the catalog.
func (c *Client) ListMaterials(ctx context.Context, q model.MaterialQuery) (*model.MaterialPage, error) {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Year > 0 {
		v.Set("year", strconv.Itoa(q.Year))
	}
	if q.Semester > 0 {
		v.Set("semester", strconv.Itoa(q.Semester))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return c.getPage(ctx, "/api/v1/materials", v)
}

// getPage decodes a paginated listing. A "materials" value that is not an array is
// treated as an empty page rather than an error.
func (c *Client) getPage(ctx context.Context, path string, q url.Values) (*model.MaterialPage, error) {
	var raw struct {
		PageInfo  model.PageInfo  `json:"pageInfo"`
		Materials json.RawMessage `json:"materials"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, err
	}
	page := &model.MaterialPage{PageInfo: raw.PageInfo, Materials: []model.MaterialSummary{}}
	trimmed := bytes.TrimSpace(raw.Materials)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			c.log.Warn("material list payload is not an array", zap.String("path", path))
		}
		return page, nil
	}
	if err := json.Unmarshal(trimmed, &page.Materials); err != nil {
		c.log.Warn("material list payload malformed", zap.String("path", path), zap.Error(err))
		page.Materials = []model.MaterialSummary{}
	}
	return page, nil
}

// CreateMaterial uploads a new material: a JSON "metadata" part followed by one
// "files" part per file.
func (c *Client) CreateMaterial(ctx context.Context, meta model.MaterialRequest, files []model.UploadFile) (*model.MaterialCreateResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("create material: encode metadata: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="metadata"; filename="blob"`)
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := pw.Write(metaJSON); err != nil {
		return nil, err
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/v1/materials", nil, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out model.MaterialCreateResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("create material: decode: %w", err)
	}
	out.CreatedAt = FormatDateTime(out.CreatedAt)
	return &out, nil
}

// UpdateMaterial replaces the metadata of a material. Attachments are not touched.
func (c *Client) UpdateMaterial(ctx context.Context, id int64, meta model.MaterialRequest) (*model.MaterialUpdateResult, error) {
	var out model.MaterialUpdateResult
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/v1/materials/%d", id), nil, meta, &out); err != nil {
		return nil, err
	}
	out.UpdatedAt = FormatDateTime(out.UpdatedAt)
	return &out, nil
}

// DeleteMaterial deletes a material owned by the caller.
func (c *Client) DeleteMaterial(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/materials/%d", id), nil, nil, nil)
}

// Purchase buys a material with points.
func (c *Client) Purchase(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/materials/%d/purchase", id), nil, nil, nil)
}

// DownloadAttachment fetches one attachment. The file name comes from the
// Content-Disposition header. Error bodies arrive as JSON even though the request
// asks for binary; they are re-parsed into *errs.APIError with a localized fallback.
func (c *Client) DownloadAttachment(ctx context.Context, materialID, attachmentID int64) (*model.Download, error) {
	path := fmt.Sprintf("/api/v1/materials/%d/download/%d", materialID, attachmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, nil), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %d/%d: %w: %v", materialID, attachmentID,
			&errs.APIError{Message: msgDownloadNetwork}, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %d/%d: read: %w", materialID, attachmentID, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.nav != nil {
			c.nav.RedirectToLogin()
		}
		return nil, fmt.Errorf("download %d/%d: %w", materialID, attachmentID, &errs.APIError{Status: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		msg := msgDownloadUnknown
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, fmt.Errorf("download %d/%d: %w", materialID, attachmentID,
			&errs.APIError{Status: resp.StatusCode, Message: msg})
	}

	return &model.Download{
		Filename: filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		Data:     data,
	}, nil
}
