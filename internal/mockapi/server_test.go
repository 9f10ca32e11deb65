package mockapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/jokbo/internal/limiter"
	"github.com/and161185/jokbo/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{SignKey: []byte("test-secret"), Logger: zaptest.NewLogger(t)})
}

func sessionFor(t *testing.T, s *Server, uid int64) *http.Cookie {
	t.Helper()
	tok, _, err := s.IssueSession(uid)
	require.NoError(t, err)
	return &http.Cookie{Name: s.CookieName(), Value: tok}
}

func do(t *testing.T, s *Server, ck *http.Cookie, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var b struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b.Error
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

var sampleMeta = model.MaterialRequest{
	Title: "자료구조 중간", Year: 2024, Semester: 1, ProfessorName: "김교수",
	Grade: "2학년", CourseDivision: "전공필수", CourseName: "자료구조",
}

func TestRequireSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := do(t, s, nil, http.MethodGet, "/api/v1/users/mypage/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, errorBody(t, rec))

	rec = do(t, s, &http.Cookie{Name: "accessToken", Value: "garbage"}, http.MethodGet, "/api/v1/users/mypage/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredSession(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(Config{SessionTTL: time.Minute, Now: func() time.Time { return now }})
	uid := s.Store().AddUser("a@x", "a", "컴퓨터공학과", true)
	ck := sessionFor(t, s, uid)

	now = now.Add(2 * time.Minute)
	rec := do(t, s, ck, http.MethodGet, "/api/v1/users/mypage/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidSessionsBlockClient(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := New(Config{
		SignKey: []byte("k"),
		Now:     clock,
		Limiter: limiter.NewMemory(time.Minute, 2, 5*time.Minute).WithClock(clock),
	})
	uid := s.Store().AddUser("a@x", "a", "컴퓨터공학부", true)
	good := sessionFor(t, s, uid)
	bad := &http.Cookie{Name: "accessToken", Value: "garbage"}

	for i := 0; i < 2; i++ {
		rec := do(t, s, bad, http.MethodGet, "/api/v1/users/mypage/me", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, s, good, http.MethodGet, "/api/v1/users/mypage/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))

	now = now.Add(5 * time.Minute)
	rec = do(t, s, good, http.MethodGet, "/api/v1/users/mypage/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDevSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := do(t, s, nil, http.MethodPost, "/dev/session", map[string]string{"email": "new@x.ac.kr"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "accessToken", cookies[0].Name)

	rec = do(t, s, cookies[0], http.MethodGet, "/api/v1/users/mypage/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "new", u.Nickname)
	assert.False(t, u.Onboarding)

	rec = do(t, s, nil, http.MethodPost, "/dev/session", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseRules(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	st := s.Store()
	author := st.AddUser("author@x", "author", "", true)
	buyer := st.AddUser("buyer@x", "buyer", "", true)
	id := st.AddMaterial(author, sampleMeta, []File{{Name: "a.pdf", Data: []byte("%PDF-1.4")}})
	path := "/api/v1/materials/" + itoa(id) + "/purchase"

	rec := do(t, s, sessionFor(t, s, author), http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ck := sessionFor(t, s, buyer)
	rec = do(t, s, ck, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, startingPoints-model.Price, st.Points(buyer))

	rec = do(t, s, ck, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	poor := st.AddUser("poor@x", "poor", "", true)
	st.SetPoints(poor, model.Price-1)
	rec = do(t, s, sessionFor(t, s, poor), http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "포인트가 부족합니다.", errorBody(t, rec))
}

func TestDownload(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	st := s.Store()
	author := st.AddUser("author@x", "author", "", true)
	buyer := st.AddUser("buyer@x", "buyer", "", true)
	id := st.AddMaterial(author, sampleMeta, []File{
		{Name: "중간 정리.pdf", Data: []byte("%PDF-1.4 body")},
		{Name: "gone.pdf"},
	})
	m, err := st.material(id)
	require.NoError(t, err)
	require.Len(t, m.Attachments, 2)
	ck := sessionFor(t, s, buyer)
	first := "/api/v1/materials/" + itoa(id) + "/download/" + itoa(m.Attachments[0].ID)

	rec := do(t, s, ck, http.MethodGet, first, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	st.MarkPurchased(buyer, id)
	rec = do(t, s, ck, http.MethodGet, first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
	cd := rec.Header().Get("Content-Disposition")
	assert.Contains(t, cd, "filename*=UTF-8''")
	assert.Contains(t, cd, "%EC%A4%91%EA%B0%84")

	rec = do(t, s, ck, http.MethodGet, "/api/v1/materials/"+itoa(id)+"/download/"+itoa(m.Attachments[1].ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "파일을 찾을 수 없습니다.", errorBody(t, rec))

	m, _ = st.material(id)
	assert.Equal(t, 1, m.DownloadCount)
}

func TestCreateMaterialMultipart(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	uid := s.Store().AddUser("u@x", "u", "", true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	meta, _ := json.Marshal(sampleMeta)
	fw, err := mw.CreateFormFile("metadata", "blob")
	require.NoError(t, err)
	_, _ = fw.Write(meta)
	fw, err = mw.CreateFormFile("files", "a.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/materials", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(sessionFor(t, s, uid))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out model.MaterialCreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uploadReward, out.EarnedPoints)
	assert.Equal(t, startingPoints+uploadReward, out.CurrentPoints)
	assert.Equal(t, startingPoints+uploadReward, s.Store().Points(uid))
}

func TestCreateMaterialWithoutFiles(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	uid := s.Store().AddUser("u@x", "u", "", true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	meta, _ := json.Marshal(sampleMeta)
	require.NoError(t, mw.WriteField("metadata", string(meta)))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/materials", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(sessionFor(t, s, uid))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	st := s.Store()
	author := st.AddUser("author@x", "author", "", true)
	buyer := st.AddUser("buyer@x", "buyer", "", true)
	id := st.AddMaterial(author, sampleMeta, nil)
	ck := sessionFor(t, s, buyer)

	req := model.ReviewRequest{MaterialID: id, Rating: 4.5, Comment: "좋아요"}
	rec := do(t, s, ck, http.MethodPost, "/api/v1/reviews", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	st.MarkPurchased(buyer, id)
	rec = do(t, s, ck, http.MethodPost, "/api/v1/reviews", req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var r model.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.True(t, r.Author)

	rec = do(t, s, ck, http.MethodPost, "/api/v1/reviews", req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, sessionFor(t, s, author), http.MethodGet, "/api/v1/materials/"+itoa(id)+"/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.False(t, list[0].Author)

	rec = do(t, s, sessionFor(t, s, author), http.MethodDelete, "/api/v1/reviews/"+itoa(r.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, ck, http.MethodPut, "/api/v1/reviews/"+itoa(r.ID), map[string]any{"rating": 3, "comment": "보통"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, ck, http.MethodDelete, "/api/v1/reviews/"+itoa(r.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListSortAndPaging(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s := New(Config{Now: func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }})
	st := s.Store()
	uid := st.AddUser("u@x", "u", "", true)
	for i := 0; i < 12; i++ {
		meta := sampleMeta
		meta.Title = "자료 " + itoa(int64(i))
		st.AddMaterial(uid, meta, nil)
	}
	ck := sessionFor(t, s, uid)

	rec := do(t, s, ck, http.MethodGet, "/api/v1/materials?sortBy=latest&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page model.MaterialPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.PageInfo.CurrentPage)
	assert.Equal(t, 2, page.PageInfo.TotalPages)
	assert.Equal(t, 12, page.PageInfo.TotalCount)
	require.Len(t, page.Materials, 2)
	assert.Equal(t, "자료 1", page.Materials[0].Title)

	rec = do(t, s, ck, http.MethodGet, "/api/v1/materials?keyword="+url.QueryEscape("자료 11"), nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Materials, 1)
}

func TestMetricsCountRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	uid := s.Store().AddUser("u@x", "u", "", true)
	ck := sessionFor(t, s, uid)

	do(t, s, ck, http.MethodGet, "/api/v1/users/mypage/me", nil)
	do(t, s, ck, http.MethodGet, "/api/v1/users/mypage/me", nil)
	do(t, s, ck, http.MethodGet, "/nope", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.Requests.WithLabelValues(http.MethodGet, "/api/v1/users/mypage/me")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Requests.WithLabelValues(http.MethodGet, "unmatched")))

	rec := do(t, s, nil, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mockapi_requests_total")
}

func TestPointLedger(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	uid := s.Store().AddUser("u@x", "u", "", true)
	ck := sessionFor(t, s, uid)

	rec := do(t, s, ck, http.MethodPost, "/api/v1/users/mypage/points/use", model.PointRequest{Amount: 1000, Reason: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, ck, http.MethodPost, "/api/v1/users/mypage/points/earn", model.PointRequest{Amount: 50, Reason: "이벤트"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, ck, http.MethodGet, "/api/v1/users/mypage/points/amount", nil)
	var bal model.PointEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, startingPoints+50, bal.Amount)

	rec = do(t, s, ck, http.MethodGet, "/api/v1/users/mypage/points/history", nil)
	var hist []model.PointEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, 50, hist[0].Amount)
}
