package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/jokbo/internal/catalog"
	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/library"
	"github.com/and161185/jokbo/internal/upload"
)

func Test_parseSort(t *testing.T) {
	cases := map[string]catalog.Sort{
		"최신순":         catalog.SortLatest,
		"추천순":         catalog.SortRecommended,
		"다운로드순":       catalog.SortDownloads,
		"latest":      catalog.SortLatest,
		"Recommended": catalog.SortRecommended,
		"downloads":   catalog.SortDownloads,
	}
	for in, want := range cases {
		got, err := parseSort(in)
		if err != nil || got != want {
			t.Fatalf("parseSort(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := parseSort("oldest"); !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
}

func Test_parseTab(t *testing.T) {
	if tab, err := parseTab("uploaded"); err != nil || tab != library.TabUploaded {
		t.Fatalf("uploaded: %v %v", tab, err)
	}
	if tab, err := parseTab("구매"); err != nil || tab != library.TabPurchased {
		t.Fatalf("구매: %v %v", tab, err)
	}
	if _, err := parseTab("sold"); err == nil {
		t.Fatalf("want error for unknown tab")
	}
}

func Test_parseRating(t *testing.T) {
	r, err := parseRating(" 4.5 ")
	if err != nil || r != 4.5 {
		t.Fatalf("parseRating: %v %v", r, err)
	}
	for _, in := range []string{"", "  ", "five"} {
		_, err := parseRating(in)
		var ve *errs.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("parseRating(%q): want validation error, got %v", in, err)
		}
	}
}

func Test_fileList(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}

	var fl fileList
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&fl, "file", "")
	if err := fs.Parse([]string{"-file", p}); err != nil {
		t.Fatal(err)
	}
	if err := fs.Parse([]string{"-file", ""}); err == nil {
		t.Fatalf("want error for empty path")
	}

	files, err := fl.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.pdf" || !bytes.HasPrefix(files[0].Data, []byte("%PDF")) {
		t.Fatalf("unexpected files: %+v", files)
	}

	fl = append(fl, filepath.Join(dir, "missing.pdf"))
	if _, err := fl.read(); err == nil {
		t.Fatalf("want error for missing file")
	}
}

func Test_materialFlags_apply(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	mf := bindMaterialFlags(fs)
	if err := fs.Parse([]string{"-title", "운영체제 기말", "-semester", "2", "-desc", "요약"}); err != nil {
		t.Fatal(err)
	}
	base := upload.Fields{Title: "old", Year: "2025", Semester: "1", Grade: "1학년", Category: "전공", Course: "OS"}
	got := mf.apply(base)
	want := upload.Fields{Title: "운영체제 기말", Year: "2025", Semester: "2", Grade: "1학년", Category: "전공", Course: "OS", Description: "요약"}
	if got != want {
		t.Fatalf("apply:\n got %+v\nwant %+v", got, want)
	}
}

func Test_emit(t *testing.T) {
	var out bytes.Buffer
	a := &app{out: &out}
	called := false
	if err := a.emit(map[string]int{"n": 1}, func() { called = true; a.line("x", "y") }); err != nil {
		t.Fatal(err)
	}
	if !called || out.String() != "x  y\n" {
		t.Fatalf("text mode: called=%v out=%q", called, out.String())
	}

	out.Reset()
	a.json = true
	if err := a.emit(map[string]int{"n": 1}, func() { t.Fatalf("text called in json mode") }); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"n": 1`) {
		t.Fatalf("json mode: %q", out.String())
	}
}
