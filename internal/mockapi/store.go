// Package mockapi is an in-memory stand-in for the marketplace backend, used for
// local development and by the client's integration tests.
package mockapi

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

const (
	startingPoints = 500
	uploadReward   = 200
	pageSize       = 10
)

type ledgerEntry struct {
	amount    int
	reason    string
	createdAt time.Time
}

type user struct {
	id         int64
	email      string
	nickname   string
	major      string
	minor      *string
	onboarding bool
	points     int
	ledger     []ledgerEntry
	purchased  []int64
}

type attachment struct {
	id   int64
	name string
	data []byte // nil: stored file is gone, downloads answer 404
}

type material struct {
	id        int64
	authorID  int64
	meta      model.MaterialRequest
	createdAt time.Time
	updatedAt time.Time
	downloads int
	files     []attachment
}

type review struct {
	id         int64
	materialID int64
	userID     int64
	rating     float64
	comment    string
	createdAt  time.Time
}

// File is an attachment given to AddMaterial. A nil Data simulates a missing stored file.
type File struct {
	Name string
	Data []byte
}

// Store holds all mock state. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[int64]*user
	materials map[int64]*material
	reviews   map[int64]*review
	nextID    int64
}

// NewStore returns an empty store using now for timestamps (time.Now if nil).
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:       now,
		users:     map[int64]*user{},
		materials: map[int64]*material{},
		reviews:   map[int64]*review{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers a user with the starting balance and returns its id.
func (s *Store) AddUser(email, nickname, major string, onboarded bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{
		id:         s.id(),
		email:      email,
		nickname:   nickname,
		major:      major,
		onboarding: onboarded,
		points:     startingPoints,
	}
	u.ledger = append(u.ledger, ledgerEntry{amount: startingPoints, reason: "가입 축하", createdAt: s.now()})
	s.users[u.id] = u
	return u.id
}

// UserByEmail finds a user id by email.
func (s *Store) UserByEmail(email string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.email, email) {
			return u.id, true
		}
	}
	return 0, false
}

// SetPoints overwrites a user's balance.
func (s *Store) SetPoints(userID int64, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.points = points
	}
}

// Points returns a user's balance.
func (s *Store) Points(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.points
	}
	return 0
}

// AddMaterial stores a material without rewarding points and returns its id.
func (s *Store) AddMaterial(authorID int64, meta model.MaterialRequest, files []File) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMaterialLocked(authorID, meta, files)
}

func (s *Store) addMaterialLocked(authorID int64, meta model.MaterialRequest, files []File) int64 {
	now := s.now()
	m := &material{id: s.id(), authorID: authorID, meta: meta, createdAt: now, updatedAt: now}
	for _, f := range files {
		m.files = append(m.files, attachment{id: s.id(), name: f.Name, data: f.Data})
	}
	s.materials[m.id] = m
	return m.id
}

// MarkPurchased records a purchase without charging points.
func (s *Store) MarkPurchased(userID, materialID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok && !contains(u.purchased, materialID) {
		u.purchased = append(u.purchased, materialID)
	}
}

// AddReview stores a review directly and returns its id.
func (s *Store) AddReview(userID, materialID int64, rating float64, comment string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &review{id: s.id(), materialID: materialID, userID: userID, rating: rating, comment: comment, createdAt: s.now()}
	s.reviews[r.id] = r
	return r.id
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Store) summaryLocked(m *material) model.MaterialSummary {
	sum := model.MaterialSummary{
		ID:             m.id,
		Title:          m.meta.Title,
		Year:           m.meta.Year,
		Semester:       m.meta.Semester,
		ProfessorName:  m.meta.ProfessorName,
		Grade:          m.meta.Grade,
		CourseDivision: m.meta.CourseDivision,
		DownloadCount:  m.downloads,
	}
	if a, ok := s.users[m.authorID]; ok {
		sum.Major = a.major
	}
	for _, r := range s.reviews {
		if r.materialID == m.id {
			sum.ReviewCount++
		}
	}
	return sum
}

func (s *Store) detailLocked(m *material) model.Material {
	out := model.Material{
		ID:             m.id,
		Title:          m.meta.Title,
		Year:           m.meta.Year,
		Semester:       m.meta.Semester,
		ProfessorName:  m.meta.ProfessorName,
		Grade:          m.meta.Grade,
		CourseDivision: m.meta.CourseDivision,
		CourseName:     m.meta.CourseName,
		Description:    m.meta.Description,
		AuthorID:       m.authorID,
		CreatedAt:      m.createdAt.Format(time.RFC3339),
		UpdatedAt:      m.updatedAt.Format(time.RFC3339),
		DownloadCount:  m.downloads,
		Attachments:    []model.Attachment{},
	}
	if a, ok := s.users[m.authorID]; ok {
		out.AuthorName = a.nickname
	}
	var sum float64
	for _, r := range s.reviews {
		if r.materialID == m.id {
			out.ReviewCount++
			sum += r.rating
		}
	}
	if out.ReviewCount > 0 {
		out.AvgRating = float64(int(sum/float64(out.ReviewCount)*10+0.5)) / 10
	}
	for _, f := range m.files {
		out.Attachments = append(out.Attachments, model.Attachment{
			ID:               f.id,
			OriginalFileName: f.name,
			StoredFilePath:   "/files/" + f.name,
		})
	}
	return out
}

// listQuery mirrors the server-side list parameters.
type listQuery struct {
	keyword  string
	year     int
	semester int
	sortBy   string
	page     int
}

func (s *Store) list(q listQuery) model.MaterialPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ms []*material
	kw := strings.ToLower(strings.TrimSpace(q.keyword))
	for _, m := range s.materials {
		if q.year > 0 && m.meta.Year != q.year {
			continue
		}
		if q.semester > 0 && m.meta.Semester != q.semester {
			continue
		}
		if kw != "" {
			hay := strings.ToLower(m.meta.Title + " " + m.meta.CourseName + " " + m.meta.ProfessorName)
			if !strings.Contains(hay, kw) {
				continue
			}
		}
		ms = append(ms, m)
	}
	if q.sortBy == "latest" {
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].createdAt.Equal(ms[j].createdAt) {
				return ms[i].id > ms[j].id
			}
			return ms[i].createdAt.After(ms[j].createdAt)
		})
	} else {
		sort.Slice(ms, func(i, j int) bool { return ms[i].id < ms[j].id })
	}
	return s.paginateLocked(ms, q.page)
}

func (s *Store) paginateLocked(ms []*material, page int) model.MaterialPage {
	if page < 1 {
		page = 1
	}
	total := len(ms)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := model.MaterialPage{
		PageInfo:  model.PageInfo{CurrentPage: page, TotalPages: totalPages, TotalCount: total},
		Materials: []model.MaterialSummary{},
	}
	for _, m := range ms[start:end] {
		out.Materials = append(out.Materials, s.summaryLocked(m))
	}
	return out
}

func (s *Store) uploadsOf(userID int64, page int) model.MaterialPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ms []*material
	for _, m := range s.materials {
		if m.authorID == userID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].id > ms[j].id })
	return s.paginateLocked(ms, page)
}

func (s *Store) purchasesOf(userID int64, page int) model.MaterialPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ms []*material
	if u, ok := s.users[userID]; ok {
		for i := len(u.purchased) - 1; i >= 0; i-- {
			if m, ok := s.materials[u.purchased[i]]; ok {
				ms = append(ms, m)
			}
		}
	}
	return s.paginateLocked(ms, page)
}

func (s *Store) material(id int64) (model.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok {
		return model.Material{}, errs.ErrNotFound
	}
	return s.detailLocked(m), nil
}

func (s *Store) createMaterial(authorID int64, meta model.MaterialRequest, files []File) (model.MaterialCreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[authorID]
	if !ok {
		return model.MaterialCreateResult{}, errs.ErrUnauthorized
	}
	id := s.addMaterialLocked(authorID, meta, files)
	u.points += uploadReward
	u.ledger = append(u.ledger, ledgerEntry{amount: uploadReward, reason: "자료 업로드", createdAt: s.now()})
	m := s.materials[id]
	return model.MaterialCreateResult{
		ID:             id,
		Title:          meta.Title,
		Year:           meta.Year,
		Semester:       meta.Semester,
		ProfessorName:  meta.ProfessorName,
		Grade:          meta.Grade,
		CourseDivision: meta.CourseDivision,
		CourseName:     meta.CourseName,
		Description:    meta.Description,
		CreatedAt:      m.createdAt.Format(time.RFC3339),
		EarnedPoints:   uploadReward,
		CurrentPoints:  u.points,
		PointMessage:   "200 포인트가 적립되었습니다.",
	}, nil
}

func (s *Store) updateMaterial(userID, id int64, meta model.MaterialRequest) (model.MaterialUpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok {
		return model.MaterialUpdateResult{}, errs.ErrNotFound
	}
	if m.authorID != userID {
		return model.MaterialUpdateResult{}, errs.ErrForbidden
	}
	m.meta = meta
	m.updatedAt = s.now()
	return model.MaterialUpdateResult{
		ID:             m.id,
		Title:          meta.Title,
		Year:           meta.Year,
		Semester:       meta.Semester,
		ProfessorName:  meta.ProfessorName,
		Grade:          meta.Grade,
		CourseDivision: meta.CourseDivision,
		CourseName:     meta.CourseName,
		Description:    meta.Description,
		UpdatedAt:      m.updatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Store) deleteMaterial(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok {
		return errs.ErrNotFound
	}
	if m.authorID != userID {
		return errs.ErrForbidden
	}
	delete(s.materials, id)
	for rid, r := range s.reviews {
		if r.materialID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

// Purchase failures with their user-facing messages.
var (
	errOwnMaterial       = &errs.APIError{Status: 400, Message: "본인 자료는 구매할 수 없습니다."}
	errAlreadyPurchased  = &errs.APIError{Status: 409, Message: "이미 구매한 자료입니다."}
	errInsufficientPoint = &errs.APIError{Status: 400, Message: "포인트가 부족합니다."}
	errNotPurchased      = &errs.APIError{Status: 403, Message: "구매 후 이용할 수 있습니다."}
	errFileMissing       = &errs.APIError{Status: 404, Message: "파일을 찾을 수 없습니다."}
	errDuplicateReview   = &errs.APIError{Status: 409, Message: "이미 리뷰를 작성했습니다."}
)

func (s *Store) purchase(userID, materialID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, errs.ErrUnauthorized
	}
	m, ok := s.materials[materialID]
	if !ok {
		return 0, errs.ErrNotFound
	}
	switch {
	case m.authorID == userID:
		return 0, errOwnMaterial
	case contains(u.purchased, materialID):
		return 0, errAlreadyPurchased
	case u.points < model.Price:
		return 0, errInsufficientPoint
	}
	u.points -= model.Price
	u.ledger = append(u.ledger, ledgerEntry{amount: -model.Price, reason: "자료 구매", createdAt: s.now()})
	u.purchased = append(u.purchased, materialID)
	return u.points, nil
}

func (s *Store) download(userID, materialID, attachmentID int64) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", nil, errs.ErrUnauthorized
	}
	m, ok := s.materials[materialID]
	if !ok {
		return "", nil, errs.ErrNotFound
	}
	if m.authorID != userID && !contains(u.purchased, materialID) {
		return "", nil, errNotPurchased
	}
	for _, f := range m.files {
		if f.id == attachmentID {
			if f.data == nil {
				return "", nil, errFileMissing
			}
			m.downloads++
			return f.name, f.data, nil
		}
	}
	return "", nil, errFileMissing
}

func (s *Store) reviewView(r *review, viewer int64) model.Review {
	out := model.Review{
		ID:        r.id,
		Rating:    r.rating,
		Comment:   r.comment,
		CreatedAt: r.createdAt.Format(time.RFC3339),
		Author:    r.userID == viewer,
	}
	if u, ok := s.users[r.userID]; ok {
		out.AuthorNickname = u.nickname
		out.ReviewerEmail = u.email
	}
	return out
}

func (s *Store) reviewsOf(materialID, viewer int64) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[materialID]; !ok {
		return nil, errs.ErrNotFound
	}
	var rs []*review
	for _, r := range s.reviews {
		if r.materialID == materialID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].id < rs[j].id })
	out := make([]model.Review, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.reviewView(r, viewer))
	}
	return out, nil
}

func (s *Store) getReview(id, viewer int64) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return model.Review{}, errs.ErrNotFound
	}
	return s.reviewView(r, viewer), nil
}

func (s *Store) createReview(userID int64, req model.ReviewRequest) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.Review{}, errs.ErrUnauthorized
	}
	if _, ok := s.materials[req.MaterialID]; !ok {
		return model.Review{}, errs.ErrNotFound
	}
	if !contains(u.purchased, req.MaterialID) {
		return model.Review{}, errNotPurchased
	}
	for _, r := range s.reviews {
		if r.materialID == req.MaterialID && r.userID == userID {
			return model.Review{}, errDuplicateReview
		}
	}
	r := &review{id: s.id(), materialID: req.MaterialID, userID: userID, rating: req.Rating, comment: req.Comment, createdAt: s.now()}
	s.reviews[r.id] = r
	return s.reviewView(r, userID), nil
}

func (s *Store) updateReview(userID, id int64, rating float64, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return errs.ErrNotFound
	}
	if r.userID != userID {
		return errs.ErrForbidden
	}
	r.rating, r.comment = rating, comment
	return nil
}

func (s *Store) deleteReview(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return errs.ErrNotFound
	}
	if r.userID != userID {
		return errs.ErrForbidden
	}
	delete(s.reviews, id)
	return nil
}

func (s *Store) me(userID int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, errs.ErrUnauthorized
	}
	return model.User{ID: u.id, Nickname: u.nickname, Major: u.major, Minor: u.minor, Email: u.email, Onboarding: u.onboarding}, nil
}

func (s *Store) updateMe(userID int64, upd model.UserUpdate) (model.User, error) {
	s.mu.Lock()
	u, ok := s.users[userID]
	if !ok {
		s.mu.Unlock()
		return model.User{}, errs.ErrUnauthorized
	}
	u.nickname, u.major, u.minor = upd.Nickname, upd.Major, upd.Minor
	s.mu.Unlock()
	return s.me(userID)
}

func (s *Store) onboard(userID int64, req model.Onboarding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errs.ErrUnauthorized
	}
	u.major, u.minor, u.onboarding = req.Major, req.Minor, true
	return nil
}

func (s *Store) changePoints(userID int64, delta int, reason string) (model.PointEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.PointEntry{}, errs.ErrUnauthorized
	}
	if u.points+delta < 0 {
		return model.PointEntry{}, errInsufficientPoint
	}
	u.points += delta
	now := s.now()
	u.ledger = append(u.ledger, ledgerEntry{amount: delta, reason: reason, createdAt: now})
	return model.PointEntry{Amount: delta, Reason: reason, CreatedAt: now.Format(time.RFC3339), Email: u.email}, nil
}

func (s *Store) balance(userID int64) (model.PointEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.PointEntry{}, errs.ErrUnauthorized
	}
	return model.PointEntry{Amount: u.points, Reason: "잔액", CreatedAt: s.now().Format(time.RFC3339), Email: u.email}, nil
}

func (s *Store) history(userID int64) ([]model.PointEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	out := make([]model.PointEntry, 0, len(u.ledger))
	for i := len(u.ledger) - 1; i >= 0; i-- {
		e := u.ledger[i]
		out = append(out, model.PointEntry{Amount: e.amount, Reason: e.reason, CreatedAt: e.createdAt.Format(time.RFC3339), Email: u.email})
	}
	return out, nil
}
