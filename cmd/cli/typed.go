package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/jokbo/internal/account"
	"github.com/and161185/jokbo/internal/api"
	"github.com/and161185/jokbo/internal/catalog"
	"github.com/and161185/jokbo/internal/detail"
	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/library"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/ui"
	"github.com/and161185/jokbo/internal/upload"
)

// ------- output -------

var (
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// emit prints v as JSON under -json, otherwise calls text.
func (a *app) emit(v any, text func()) error {
	if a.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (a *app) line(parts ...string) {
	fmt.Fprintln(a.out, strings.Join(parts, "  "))
}

func (a *app) printCatalog(st catalog.State) {
	if st.Err != "" {
		a.line(st.Err)
		return
	}
	a.line(headStyle.Render(fmt.Sprintf("%s · %d/%d 페이지 · 총 %d건", st.Sort, st.Page, st.TotalPages, st.TotalCount)))
	a.printSummaries(st.Items)
}

func (a *app) printSummaries(items []model.MaterialSummary) {
	if len(items) == 0 {
		a.line(faintStyle.Render("자료가 없습니다."))
		return
	}
	for _, m := range items {
		a.line(
			fmt.Sprintf("#%d", m.ID),
			m.Title,
			fmt.Sprintf("%d-%d", m.Year, m.Semester),
			m.ProfessorName,
			m.Grade,
			m.CourseDivision,
			faintStyle.Render(fmt.Sprintf("리뷰 %d · 다운로드 %d", m.ReviewCount, m.DownloadCount)),
		)
	}
}

func (a *app) printLibrary(st library.State) {
	if st.Err != "" {
		a.line(st.Err)
		return
	}
	a.line(headStyle.Render(fmt.Sprintf("%s · %d/%d 페이지", st.Tab, st.Page, st.TotalPages)))
	a.printSummaries(st.Items)
}

func (a *app) printDetail(st detail.State) {
	m := st.Material
	a.line(headStyle.Render(m.Title), faintStyle.Render(fmt.Sprintf("#%d", m.ID)))
	a.line(ui.LabelField("연도/학기", fmt.Sprintf("%d-%d", m.Year, m.Semester)))
	a.line(ui.LabelField("교수명", m.ProfessorName))
	a.line(ui.LabelField("학년", m.Grade))
	a.line(ui.LabelField("이수구분", m.CourseDivision))
	a.line(ui.LabelField("과목명", m.CourseName))
	a.line(ui.LabelField("작성자", m.AuthorName))
	a.line(ui.LabelField("등록일", api.FormatDateTime(m.CreatedAt)))
	a.line(ui.LabelField("평점", fmt.Sprintf("%s %.1f (%d)", ui.StarRating(m.AvgRating), m.AvgRating, m.ReviewCount)))
	a.line(ui.LabelField("다운로드", strconv.Itoa(m.DownloadCount)))
	if m.Description != "" {
		a.line(m.Description)
	}
	for _, at := range m.Attachments {
		a.line(faintStyle.Render("  📄 " + at.OriginalFileName))
	}
	acts := make([]string, 0, 4)
	for _, act := range st.Role.Actions() {
		acts = append(acts, act.String())
	}
	a.line(ui.Button(st.Primary, false), faintStyle.Render(fmt.Sprintf("%s: %s", st.Role, strings.Join(acts, ", "))))
	a.printReviews(st)
}

func (a *app) printReviews(st detail.State) {
	if st.Mine != nil {
		a.line(headStyle.Render("내 리뷰"), ui.StarRating(st.Mine.Rating), st.Mine.Comment)
	}
	for _, r := range st.Others {
		a.line(r.AuthorNickname, ui.StarRating(r.Rating), r.Comment, faintStyle.Render(api.FormatDateTime(r.CreatedAt)))
	}
}

func (a *app) printProfile(st account.ProfileState) {
	u := st.User
	minor := "없음"
	if u.Minor != nil {
		minor = *u.Minor
	}
	a.line(ui.LabelField("닉네임", u.Nickname))
	a.line(ui.LabelField("이메일", u.Email))
	a.line(ui.LabelField("전공", u.Major))
	a.line(ui.LabelField("부전공", minor))
	if st.Loaded {
		a.line(ui.LabelField("포인트", fmt.Sprintf("%dP", st.Balance)))
	}
}

func (a *app) printPoints(st account.ProfileState) {
	a.line(headStyle.Render(fmt.Sprintf("%dP", st.Balance)))
	for _, e := range st.History {
		a.line(fmt.Sprintf("%+dP", e.Amount), e.Reason, faintStyle.Render(api.FormatDateTime(e.CreatedAt)))
	}
}

// ------- parsing -------

var sortAliases = map[string]catalog.Sort{
	"latest":      catalog.SortLatest,
	"recommended": catalog.SortRecommended,
	"downloads":   catalog.SortDownloads,
}

func parseSort(s string) (catalog.Sort, error) {
	if v, ok := sortAliases[strings.ToLower(s)]; ok {
		return v, nil
	}
	for _, v := range catalog.Sorts {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown sort %q: %w", s, errs.ErrBadRequest)
}

func parseTab(s string) (library.Tab, error) {
	switch strings.ToLower(s) {
	case "purchased", "구매":
		return library.TabPurchased, nil
	case "uploaded", "판매":
		return library.TabUploaded, nil
	}
	return 0, fmt.Errorf("unknown tab %q: %w", s, errs.ErrBadRequest)
}

// parseRating reads a rating; range and granularity are checked by the review form.
func parseRating(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errs.Validation(detail.MsgReviewInvalid)
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errs.Validation(detail.MsgReviewInvalid)
	}
	return r, nil
}

// fileList is a repeatable -file flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	if v == "" {
		return errors.New("empty file path")
	}
	*f = append(*f, v)
	return nil
}

func (f fileList) read() ([]model.UploadFile, error) {
	out := make([]model.UploadFile, 0, len(f))
	for _, p := range f {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, model.UploadFile{Name: filepath.Base(p), Data: b})
	}
	return out, nil
}

// materialFlags are the upload/edit form fields; unset flags keep the form value.
type materialFlags struct {
	title, year, semester, professor, grade, category, course, desc *string
}

func bindMaterialFlags(fs *flag.FlagSet) materialFlags {
	return materialFlags{
		title:     fs.String("title", "", "title"),
		year:      fs.String("year", "", "year (e.g. 2025)"),
		semester:  fs.String("semester", "", "1|2"),
		professor: fs.String("professor", "", "professor"),
		grade:     fs.String("grade", "", "1학년..4학년"),
		category:  fs.String("category", "", "전공|교양|기초"),
		course:    fs.String("course", "", "course name"),
		desc:      fs.String("desc", "", "description"),
	}
}

func (m materialFlags) apply(f upload.Fields) upload.Fields {
	set := func(dst *string, v *string) {
		if *v != "" {
			*dst = *v
		}
	}
	set(&f.Title, m.title)
	set(&f.Year, m.year)
	set(&f.Semester, m.semester)
	set(&f.Professor, m.professor)
	set(&f.Grade, m.grade)
	set(&f.Category, m.category)
	set(&f.Course, m.course)
	set(&f.Description, m.desc)
	return f
}
