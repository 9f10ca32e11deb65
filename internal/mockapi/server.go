package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/limiter"
	"github.com/and161185/jokbo/internal/model"
)

// Config configures a Server.
type Config struct {
	SignKey    []byte
	CookieName string
	SessionTTL time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
	// Limiter throttles clients presenting invalid session cookies. Nil disables it.
	Limiter limiter.Limiter
}

// Server wires the store into gin handlers.
type Server struct {
	cfg     Config
	store   *Store
	engine  *gin.Engine
	Metrics *Metrics
}

// New builds a server with an empty store.
func New(cfg Config) *Server {
	if len(cfg.SignKey) == 0 {
		cfg.SignKey = []byte("mockapi-dev-key")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "accessToken"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{cfg: cfg, store: NewStore(cfg.Now), Metrics: newMetrics()}
	s.engine = s.routes()
	return s
}

// Store exposes the state for seeding.
func (s *Server) Store() *Store { return s.store }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// CookieName is the session cookie the server reads.
func (s *Server) CookieName() string { return s.cfg.CookieName }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.cfg.Logger), logging(s.cfg.Logger), s.Metrics.middleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	r.POST("/dev/session", s.devSession)

	authed := r.Group("/", s.requireSession())
	authed.POST("/logout", s.logout)

	v1 := authed.Group("/api/v1")
	v1.GET("/materials", s.listMaterials)
	v1.POST("/materials", s.createMaterial)
	v1.GET("/materials/:id", s.getMaterial)
	v1.PUT("/materials/:id", s.updateMaterial)
	v1.DELETE("/materials/:id", s.deleteMaterial)
	v1.POST("/materials/:id/purchase", s.purchase)
	v1.GET("/materials/:id/download/:attachmentId", s.download)
	v1.GET("/materials/:id/reviews", s.listReviews)

	v1.GET("/reviews/:id", s.getReview)
	v1.POST("/reviews", s.createReview)
	v1.PUT("/reviews/:id", s.updateReview)
	v1.DELETE("/reviews/:id", s.deleteReview)

	v1.GET("/users/mypage/me", s.getMe)
	v1.PUT("/users/mypage/me", s.updateMe)
	v1.POST("/users/onboarding", s.onboard)
	v1.POST("/users/mypage/points/use", s.usePoints)
	v1.POST("/users/mypage/points/earn", s.earnPoints)
	v1.GET("/users/mypage/points/history", s.pointHistory)
	v1.GET("/users/mypage/points/amount", s.pointAmount)

	v1.GET("/me/materials", s.myUploads)
	v1.GET("/me/downloads", s.myDownloads)
	return r
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// fail maps store errors onto the {"error": "..."} body.
func fail(c *gin.Context, err error) {
	var ae *errs.APIError
	switch {
	case errors.As(err, &ae):
		abortError(c, ae.Status, ae.Message)
	case errors.Is(err, errs.ErrNotFound):
		abortError(c, http.StatusNotFound, "존재하지 않는 자료입니다.")
	case errors.Is(err, errs.ErrForbidden):
		abortError(c, http.StatusForbidden, "권한이 없습니다.")
	case errors.Is(err, errs.ErrUnauthorized):
		abortError(c, http.StatusUnauthorized, "로그인이 필요합니다.")
	default:
		abortError(c, http.StatusInternalServerError, err.Error())
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, "잘못된 요청입니다.")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	v, _ := strconv.Atoi(c.Query(name))
	return v
}

func validMeta(m model.MaterialRequest) bool {
	return strings.TrimSpace(m.Title) != "" && m.Year > 0 && m.Semester > 0 &&
		m.ProfessorName != "" && m.Grade != "" && m.CourseDivision != "" && m.CourseName != ""
}

// --- session ---

type devSessionRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// devSession logs in (creating the user if needed) and sets the session cookie.
func (s *Server) devSession(c *gin.Context) {
	var req devSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		abortError(c, http.StatusBadRequest, "email이 필요합니다.")
		return
	}
	id, ok := s.store.UserByEmail(req.Email)
	if !ok {
		nick := req.Nickname
		if nick == "" {
			nick = strings.SplitN(req.Email, "@", 2)[0]
		}
		id = s.store.AddUser(req.Email, nick, "", false)
	}
	tok, exp, err := s.IssueSession(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.SetCookie(s.cfg.CookieName, tok, int(s.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": tok, "expiresAt": exp.Format(time.RFC3339), "userId": id})
}

func (s *Server) logout(c *gin.Context) {
	c.SetCookie(s.cfg.CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// --- materials ---

func (s *Server) listMaterials(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.list(listQuery{
		keyword:  c.Query("keyword"),
		year:     queryInt(c, "year"),
		semester: queryInt(c, "semester"),
		sortBy:   c.Query("sortBy"),
		page:     queryInt(c, "page"),
	}))
}

func (s *Server) getMaterial(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := s.store.material(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) createMaterial(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abortError(c, http.StatusBadRequest, "multipart 요청이 아닙니다.")
		return
	}
	var metaRaw []byte
	if fhs := form.File["metadata"]; len(fhs) > 0 {
		if metaRaw, err = readPart(fhs[0]); err != nil {
			fail(c, err)
			return
		}
	} else if vs := form.Value["metadata"]; len(vs) > 0 {
		metaRaw = []byte(vs[0])
	}
	var meta model.MaterialRequest
	if err := json.Unmarshal(metaRaw, &meta); err != nil || !validMeta(meta) {
		abortError(c, http.StatusBadRequest, "필수 항목이 누락되었습니다.")
		return
	}
	fhs := form.File["files"]
	if len(fhs) == 0 {
		abortError(c, http.StatusBadRequest, "하나 이상의 파일을 업로드해야 합니다.")
		return
	}
	files := make([]File, 0, len(fhs))
	for _, fh := range fhs {
		data, err := readPart(fh)
		if err != nil {
			fail(c, err)
			return
		}
		files = append(files, File{Name: fh.Filename, Data: data})
	}
	out, err := s.store.createMaterial(currentUser(c), meta, files)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) updateMaterial(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var meta model.MaterialRequest
	if err := c.ShouldBindJSON(&meta); err != nil || !validMeta(meta) {
		abortError(c, http.StatusBadRequest, "필수 항목이 누락되었습니다.")
		return
	}
	out, err := s.store.updateMaterial(currentUser(c), id, meta)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteMaterial(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.deleteMaterial(currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) purchase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	left, err := s.store.purchase(currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materialId": id, "spentPoints": model.Price, "currentPoints": left})
}

func (s *Server) download(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	aid, ok := pathID(c, "attachmentId")
	if !ok {
		return
	}
	name, data, err := s.store.download(currentUser(c), id, aid)
	if err != nil {
		fail(c, err)
		return
	}
	enc := url.PathEscape(name)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, enc, enc))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// --- reviews ---

func (s *Server) listReviews(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rs, err := s.store.reviewsOf(id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) getReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := s.store.getReview(id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func validReview(rating float64, comment string) bool {
	return rating >= 0 && rating <= 5 && strings.TrimSpace(comment) != ""
}

func (s *Server) createReview(c *gin.Context) {
	var req model.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaterialID <= 0 || !validReview(req.Rating, req.Comment) {
		abortError(c, http.StatusBadRequest, "별점과 후기를 모두 입력해주세요.")
		return
	}
	r, err := s.store.createReview(currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) updateReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validReview(req.Rating, req.Comment) {
		abortError(c, http.StatusBadRequest, "별점과 후기를 모두 입력해주세요.")
		return
	}
	if err := s.store.updateReview(currentUser(c), id, req.Rating, req.Comment); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.deleteReview(currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- users ---

func (s *Server) getMe(c *gin.Context) {
	u, err := s.store.me(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateMe(c *gin.Context) {
	var upd model.UserUpdate
	if err := c.ShouldBindJSON(&upd); err != nil || upd.Nickname == "" || upd.Major == "" {
		abortError(c, http.StatusBadRequest, "이름과 본전공은 필수입니다.")
		return
	}
	u, err := s.store.updateMe(currentUser(c), upd)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) onboard(c *gin.Context) {
	var req model.Onboarding
	if err := c.ShouldBindJSON(&req); err != nil || req.Major == "" {
		abortError(c, http.StatusBadRequest, "본전공을 선택해주세요.")
		return
	}
	if err := s.store.onboard(currentUser(c), req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) pointChange(c *gin.Context, sign int) {
	var req model.PointRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		abortError(c, http.StatusBadRequest, "잘못된 포인트 요청입니다.")
		return
	}
	e, err := s.store.changePoints(currentUser(c), sign*req.Amount, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) usePoints(c *gin.Context)  { s.pointChange(c, -1) }
func (s *Server) earnPoints(c *gin.Context) { s.pointChange(c, 1) }

func (s *Server) pointHistory(c *gin.Context) {
	h, err := s.store.history(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) pointAmount(c *gin.Context) {
	b, err := s.store.balance(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) myUploads(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.uploadsOf(currentUser(c), queryInt(c, "page")))
}

func (s *Server) myDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.purchasesOf(currentUser(c), queryInt(c, "page")))
}
