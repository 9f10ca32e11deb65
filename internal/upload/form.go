// Package upload is the material form, shared by upload and edit.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
	"github.com/and161185/jokbo/internal/options"
)

// User-facing messages.
const (
	MsgRequired     = "모든 필수 항목을 입력해주세요."
	MsgNeedFile     = "하나 이상의 파일을 업로드해야 합니다."
	MsgPDFOnly      = "PDF 파일만 업로드할 수 있습니다."
	MsgLoadFailed   = "자료 정보를 불러오는데 실패했습니다."
	MsgUpdated      = "자료가 성공적으로 수정되었습니다."
	msgUploadedFmt  = "업로드 성공! %s"
	msgFailedFmt    = "자료 %s에 실패했습니다. 다시 시도해주세요."
	wordUpload      = "업로드"
	wordEdit        = "수정"
	pdfMIME         = "application/pdf"
	pdfExt          = ".pdf"
	defaultFileName = "document.pdf"
)

// Mode is Create or Edit(id), fixed when the form is built.
type Mode struct {
	id int64
}

// Create is the upload mode.
func Create() Mode { return Mode{} }

// Edit is the edit mode of material id.
func Edit(id int64) Mode { return Mode{id: id} }

// IsEdit reports whether m edits an existing material.
func (m Mode) IsEdit() bool { return m.id != 0 }

// ID is the edited material, 0 in create mode.
func (m Mode) ID() int64 { return m.id }

func (m Mode) word() string {
	if m.IsEdit() {
		return wordEdit
	}
	return wordUpload
}

// ModeFromRoute picks the mode from /data/upload or /data/edit/:id.
func ModeFromRoute(path string) (Mode, error) {
	switch r, id := nav.Resolve(path); r {
	case nav.RouteUpload:
		return Create(), nil
	case nav.RouteEdit:
		return Edit(id), nil
	}
	return Mode{}, fmt.Errorf("route %q is not a material form", path)
}

// Source is the subset of the API client the form uses.
type Source interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	CreateMaterial(ctx context.Context, meta model.MaterialRequest, files []model.UploadFile) (*model.MaterialCreateResult, error)
	UpdateMaterial(ctx context.Context, id int64, meta model.MaterialRequest) (*model.MaterialUpdateResult, error)
}

// Points is refreshed after an upload.
type Points interface {
	Refresh(ctx context.Context) error
}

// Navigator moves between screens.
type Navigator interface {
	Navigate(path string)
}

// Dialog shows alerts.
type Dialog interface {
	Alert(msg string)
}

// Deps are the collaborators of a Form.
type Deps struct {
	Points Points
	Nav    Navigator
	Dialog Dialog
	Log    *zap.Logger
	Now    func() time.Time
}

// Fields are the form inputs. Dropdown fields hold the option value, "" when unset.
type Fields struct {
	Title       string `validate:"required"`
	Year        string `validate:"required,number"`
	Semester    string `validate:"required,oneof=1 2"`
	Professor   string `validate:"required"`
	Grade       string `validate:"required"`
	Category    string `validate:"required"`
	Course      string `validate:"required"`
	Description string
}

func (f Fields) trimmed() Fields {
	f.Title = strings.TrimSpace(f.Title)
	f.Professor = strings.TrimSpace(f.Professor)
	f.Course = strings.TrimSpace(f.Course)
	return f
}

func (f Fields) request() model.MaterialRequest {
	y, _ := strconv.Atoi(f.Year)
	s, _ := strconv.Atoi(f.Semester)
	return model.MaterialRequest{
		Title:          f.Title,
		Year:           y,
		Semester:       s,
		ProfessorName:  f.Professor,
		Grade:          f.Grade,
		CourseDivision: f.Category,
		CourseName:     f.Course,
		Description:    f.Description,
	}
}

var validate = validator.New()

// Form is safe for concurrent use.
type Form struct {
	mode Mode
	src  Source
	d    Deps
	log  *zap.Logger

	mu          sync.Mutex
	fields      Fields
	files       []model.UploadFile
	attachments []model.Attachment
	busy        bool
}

// New builds a form in mode. Call Init to fill it.
func New(mode Mode, src Source, d Deps) *Form {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Form{mode: mode, src: src, d: d, log: log}
}

// Mode returns the form mode.
func (f *Form) Mode() Mode { return f.mode }

// Init defaults each dropdown to its first option in create mode, or loads the
// material in edit mode. A value that matches no option leaves its dropdown unset.
// A failed load alerts and returns to the list.
func (f *Form) Init(ctx context.Context) error {
	years := options.Years(f.d.Now())
	if !f.mode.IsEdit() {
		f.mu.Lock()
		f.fields = Fields{
			Year:     years[0].Value,
			Semester: options.Semesters()[0].Value,
			Grade:    options.Grades()[0].Value,
			Category: options.Categories()[0].Value,
		}
		f.mu.Unlock()
		return nil
	}

	m, err := f.src.GetMaterial(ctx, f.mode.ID())
	if errs.Handled(err) {
		return fmt.Errorf("load material %d: %w", f.mode.ID(), err)
	}
	if err != nil {
		f.log.Error("material load for edit failed", zap.Int64("material_id", f.mode.ID()), zap.Error(err))
		f.d.Dialog.Alert(MsgLoadFailed)
		f.d.Nav.Navigate(nav.Data)
		return fmt.Errorf("load material %d: %w", f.mode.ID(), err)
	}
	pick := func(opts []options.Option, v string) string {
		if o, ok := options.Find(opts, v); ok {
			return o.Value
		}
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = Fields{
		Title:       m.Title,
		Year:        pick(years, strconv.Itoa(m.Year)),
		Semester:    pick(options.Semesters(), strconv.Itoa(m.Semester)),
		Professor:   m.ProfessorName,
		Grade:       pick(options.Grades(), m.Grade),
		Category:    pick(options.Categories(), m.CourseDivision),
		Course:      m.CourseName,
		Description: m.Description,
	}
	f.attachments = append([]model.Attachment(nil), m.Attachments...)
	return nil
}

// Fields returns the current inputs.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// SetFields replaces the inputs.
func (f *Form) SetFields(v Fields) {
	f.mu.Lock()
	f.fields = v
	f.mu.Unlock()
}

// Attachments are the existing files of the edited material, shown read-only.
func (f *Form) Attachments() []model.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Attachment(nil), f.attachments...)
}

// Select replaces the file selection. Every file must be a PDF by extension and by
// content; otherwise the selection is left unchanged. Edit mode keeps the existing
// attachments and takes no files.
func (f *Form) Select(files []model.UploadFile) error {
	if f.mode.IsEdit() {
		return fmt.Errorf("select files in edit mode: %w", errs.ErrNotAllowed)
	}
	for _, file := range files {
		if !isPDF(file) {
			f.log.Info("rejected non-pdf file", zap.String("file", file.Name))
			return errs.Validation(MsgPDFOnly)
		}
	}
	sel := make([]model.UploadFile, len(files))
	for i, file := range files {
		if file.Name == "" {
			file.Name = defaultFileName
		}
		sel[i] = file
	}
	f.mu.Lock()
	f.files = sel
	f.mu.Unlock()
	return nil
}

func isPDF(file model.UploadFile) bool {
	if !strings.EqualFold(filepath.Ext(file.Name), pdfExt) {
		return false
	}
	return mimetype.Detect(file.Data).Is(pdfMIME)
}

// Remove drops every selected file named name.
func (f *Form) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.files[:0]
	for _, file := range f.files {
		if file.Name != name {
			out = append(out, file)
		}
	}
	f.files = out
}

// Files lists the selected file names.
func (f *Form) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.files))
	for i, file := range f.files {
		names[i] = file.Name
	}
	return names
}

// Submit validates and sends the form, then navigates to the detail page of the
// created or updated material and returns its path. Validation failures alert once
// and never reach the network; request failures alert and keep the form as it is.
func (f *Form) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	fields := f.fields.trimmed()
	files := append([]model.UploadFile(nil), f.files...)
	f.mu.Unlock()

	if err := validate.Struct(fields); err != nil {
		f.d.Dialog.Alert(MsgRequired)
		return "", errs.Validation(MsgRequired)
	}
	if !f.mode.IsEdit() && len(files) == 0 {
		f.d.Dialog.Alert(MsgNeedFile)
		return "", errs.Validation(MsgNeedFile)
	}

	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return "", fmt.Errorf("submit: %w", errs.ErrBusy)
	}
	f.busy = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	meta := fields.request()
	var dest string
	if f.mode.IsEdit() {
		res, err := f.src.UpdateMaterial(ctx, f.mode.ID(), meta)
		if err != nil {
			return "", f.failed(err)
		}
		f.d.Dialog.Alert(MsgUpdated)
		dest = nav.Detail(res.ID)
	} else {
		res, err := f.src.CreateMaterial(ctx, meta, files)
		if err != nil {
			return "", f.failed(err)
		}
		f.d.Dialog.Alert(fmt.Sprintf(msgUploadedFmt, res.PointMessage))
		if f.d.Points != nil {
			if err := f.d.Points.Refresh(ctx); err != nil {
				f.log.Warn("point refresh after upload failed", zap.Error(err))
			}
		}
		dest = nav.Detail(res.ID)
	}
	f.d.Nav.Navigate(dest)
	return dest, nil
}

func (f *Form) failed(err error) error {
	if errs.Handled(err) {
		return fmt.Errorf("%s material: %w", f.mode.word(), err)
	}
	f.log.Error("material submit failed", zap.String("mode", f.mode.word()), zap.Int64("material_id", f.mode.ID()), zap.Error(err))
	f.d.Dialog.Alert(fmt.Sprintf(msgFailedFmt, f.mode.word()))
	return fmt.Errorf("%s material: %w", f.mode.word(), err)
}
