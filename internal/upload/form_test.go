package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type fakeSource struct {
	material  model.Material
	getErr    error
	createErr error
	updateErr error
	updatedID int64

	created []model.MaterialRequest
	files   [][]model.UploadFile
	updated []model.MaterialRequest
}

func (f *fakeSource) GetMaterial(context.Context, int64) (*model.Material, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	m := f.material
	return &m, nil
}

func (f *fakeSource) CreateMaterial(_ context.Context, meta model.MaterialRequest, files []model.UploadFile) (*model.MaterialCreateResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, meta)
	f.files = append(f.files, files)
	return &model.MaterialCreateResult{ID: 42, PointMessage: "200P가 적립되었습니다."}, nil
}

func (f *fakeSource) UpdateMaterial(_ context.Context, _ int64, meta model.MaterialRequest) (*model.MaterialUpdateResult, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = append(f.updated, meta)
	return &model.MaterialUpdateResult{ID: f.updatedID}, nil
}

type recorder struct {
	alerts    []string
	paths     []string
	refreshed int
}

func (r *recorder) Alert(msg string)              { r.alerts = append(r.alerts, msg) }
func (r *recorder) Navigate(path string)          { r.paths = append(r.paths, path) }
func (r *recorder) Refresh(context.Context) error { r.refreshed++; return nil }

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newForm(t *testing.T, mode Mode, src *fakeSource) (*Form, *recorder) {
	t.Helper()
	r := &recorder{}
	f := New(mode, src, Deps{
		Points: r,
		Nav:    r,
		Dialog: r,
		Log:    zaptest.NewLogger(t),
		Now:    func() time.Time { return now },
	})
	require.NoError(t, f.Init(context.Background()))
	return f, r
}

func filled(f *Form) {
	v := f.Fields()
	v.Title = "운영체제 중간"
	v.Professor = "김교수"
	v.Course = "운영체제"
	v.Description = "2025 중간고사"
	f.SetFields(v)
}

func TestModeFromRoute(t *testing.T) {
	m, err := ModeFromRoute(nav.Upload)
	require.NoError(t, err)
	assert.False(t, m.IsEdit())

	m, err = ModeFromRoute(nav.Edit(7))
	require.NoError(t, err)
	assert.True(t, m.IsEdit())
	assert.Equal(t, int64(7), m.ID())

	_, err = ModeFromRoute(nav.Data)
	assert.Error(t, err)
}

func TestCreateDefaults(t *testing.T) {
	f, _ := newForm(t, Create(), &fakeSource{})
	v := f.Fields()
	assert.Equal(t, "2025", v.Year)
	assert.Equal(t, "1", v.Semester)
	assert.Equal(t, "1학년", v.Grade)
	assert.Equal(t, "전공", v.Category)
	assert.Empty(t, v.Title)
}

func TestCreateSubmit(t *testing.T) {
	src := &fakeSource{}
	f, r := newForm(t, Create(), src)
	filled(f)
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}, {Name: "b.PDF", Data: pdf}}))

	dest, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Detail(42), dest)
	assert.Equal(t, []string{nav.Detail(42)}, r.paths)
	assert.Equal(t, []string{"업로드 성공! 200P가 적립되었습니다."}, r.alerts)
	assert.Equal(t, 1, r.refreshed)

	require.Len(t, src.created, 1)
	got := src.created[0]
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 1, got.Semester)
	assert.Equal(t, "전공", got.CourseDivision)
	assert.Equal(t, "운영체제", got.CourseName)
	assert.Len(t, src.files[0], 2)
}

func TestCreateRequiresFile(t *testing.T) {
	src := &fakeSource{}
	f, r := newForm(t, Create(), src)
	filled(f)

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, []string{MsgNeedFile}, r.alerts)
	assert.Empty(t, src.created)
}

func TestMissingFieldsAlertOnce(t *testing.T) {
	src := &fakeSource{}
	f, r := newForm(t, Create(), src)
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}))
	v := f.Fields()
	v.Title = "   "
	f.SetFields(v)

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, []string{MsgRequired}, r.alerts)
	assert.Empty(t, src.created)
	assert.Empty(t, r.paths)
}

func TestSelectRejectsNonPDF(t *testing.T) {
	f, _ := newForm(t, Create(), &fakeSource{})
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}))

	err := f.Select([]model.UploadFile{{Name: "b.pdf", Data: pdf}, {Name: "notes.txt", Data: []byte("hi")}})
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, []string{"a.pdf"}, f.Files())

	// right extension, wrong content
	err = f.Select([]model.UploadFile{{Name: "fake.pdf", Data: []byte("PK\x03\x04")}})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestSelectReplacesAndRemove(t *testing.T) {
	f, _ := newForm(t, Create(), &fakeSource{})
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}))
	require.NoError(t, f.Select([]model.UploadFile{{Name: "b.pdf", Data: pdf}, {Name: "c.pdf", Data: pdf}}))
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, f.Files())

	f.Remove("b.pdf")
	assert.Equal(t, []string{"c.pdf"}, f.Files())
	f.Remove("missing.pdf")
	assert.Equal(t, []string{"c.pdf"}, f.Files())
}

func TestCreateFailureKeepsForm(t *testing.T) {
	src := &fakeSource{createErr: &errs.APIError{Status: 500, Message: "boom"}}
	f, r := newForm(t, Create(), src)
	filled(f)
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}))

	_, err := f.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"자료 업로드에 실패했습니다. 다시 시도해주세요."}, r.alerts)
	assert.Empty(t, r.paths)
	assert.Zero(t, r.refreshed)
	assert.Equal(t, []string{"a.pdf"}, f.Files())
	assert.Equal(t, "운영체제 중간", f.Fields().Title)
}

func TestSessionExpiryOnlyRedirects(t *testing.T) {
	unauthorized := &errs.APIError{Status: 401}
	f, r := newForm(t, Create(), &fakeSource{createErr: unauthorized})
	filled(f)
	require.NoError(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}))

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Empty(t, r.alerts)
	assert.Empty(t, r.paths)
	assert.Equal(t, []string{"a.pdf"}, f.Files())

	r = &recorder{}
	edit := New(Edit(7), &fakeSource{getErr: unauthorized}, Deps{Nav: r, Dialog: r, Log: zaptest.NewLogger(t)})
	require.ErrorIs(t, edit.Init(context.Background()), errs.ErrUnauthorized)
	assert.Empty(t, r.alerts)
	assert.Empty(t, r.paths, "no bounce to the list on top of the login redirect")
}

func TestEditPreloadAndSubmit(t *testing.T) {
	src := &fakeSource{
		material: model.Material{
			ID: 7, Title: "자료구조", Year: 2023, Semester: 2, ProfessorName: "이교수",
			Grade: "2학년", CourseDivision: "교양", CourseName: "자료구조",
			Attachments: []model.Attachment{{ID: 1, OriginalFileName: "ds.pdf"}},
		},
		updatedID: 8,
	}
	f, r := newForm(t, Edit(7), src)

	v := f.Fields()
	assert.Equal(t, "2023", v.Year)
	assert.Equal(t, "2", v.Semester)
	assert.Equal(t, "2학년", v.Grade)
	assert.Equal(t, "교양", v.Category)
	assert.Len(t, f.Attachments(), 1)

	require.ErrorIs(t, f.Select([]model.UploadFile{{Name: "a.pdf", Data: pdf}}), errs.ErrNotAllowed)

	v.Title = "자료구조 기말"
	f.SetFields(v)
	dest, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nav.Detail(8), dest)
	assert.Equal(t, []string{MsgUpdated}, r.alerts)
	require.Len(t, src.updated, 1)
	assert.Equal(t, "자료구조 기말", src.updated[0].Title)
	assert.Zero(t, r.refreshed)
}

func TestEditUnknownOptionLeavesUnset(t *testing.T) {
	src := &fakeSource{material: model.Material{
		ID: 7, Title: "옛날 자료", Year: 1999, Semester: 1, ProfessorName: "박교수",
		Grade: "5학년", CourseDivision: "전공", CourseName: "c",
	}}
	f, r := newForm(t, Edit(7), src)
	v := f.Fields()
	assert.Empty(t, v.Year)
	assert.Empty(t, v.Grade)

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, []string{MsgRequired}, r.alerts)
	assert.Empty(t, src.updated)
}

func TestEditLoadFailure(t *testing.T) {
	r := &recorder{}
	f := New(Edit(7), &fakeSource{getErr: errors.New("down")}, Deps{Nav: r, Dialog: r, Log: zaptest.NewLogger(t)})
	require.Error(t, f.Init(context.Background()))
	assert.Equal(t, []string{MsgLoadFailed}, r.alerts)
	assert.Equal(t, []string{nav.Data}, r.paths)
}

func TestEditFailure(t *testing.T) {
	src := &fakeSource{
		material:  model.Material{ID: 7, Title: "t", Year: 2024, Semester: 1, ProfessorName: "p", Grade: "1학년", CourseDivision: "전공", CourseName: "c"},
		updateErr: errs.ErrForbidden,
	}
	f, r := newForm(t, Edit(7), src)
	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrForbidden)
	assert.Equal(t, []string{"자료 수정에 실패했습니다. 다시 시도해주세요."}, r.alerts)
}
