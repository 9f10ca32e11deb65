package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/and161185/jokbo/internal/account"
	"github.com/and161185/jokbo/internal/catalog"
	"github.com/and161185/jokbo/internal/detail"
	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/library"
	"github.com/and161185/jokbo/internal/session"
	"github.com/and161185/jokbo/internal/tui"
	"github.com/and161185/jokbo/internal/upload"
)

type handler func(ctx context.Context, a *app, args []string) error

var commands map[string]handler

func init() {
	commands = map[string]handler{
		"login":    cmdLogin,
		"logout":   cmdLogout,
		"gate":     cmdGate,
		"onboard":  cmdOnboard,
		"me":       cmdMe,
		"me-edit":  cmdMeEdit,
		"points":   cmdPoints,
		"list":     cmdList,
		"browse":   cmdBrowse,
		"show":     cmdShow,
		"buy":      cmdBuy,
		"download": cmdDownload,
		"review":   cmdReview,
		"upload":   cmdUpload,
		"edit":     cmdEdit,
		"rm":       cmdRm,
		"mine":     cmdMine,
		"remove":   cmdRemove,
	}
}

func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errw)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func needID(a *app, fs *flag.FlagSet, id int64) error {
	if id <= 0 {
		fmt.Fprintf(a.errw, "%s: need -id\n", fs.Name())
		return errUsage
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "login")
	cookie := fs.String("cookie", "", "session cookie value")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *cookie == "" {
		fmt.Fprintln(a.errw, "need -cookie")
		return errUsage
	}
	s, err := a.sess.Save(*cookie)
	if err != nil {
		return err
	}
	a.client.SetSessionCookie(a.cfg.Session.CookieName, s.Cookie)
	dest, err := account.Gate(ctx, a.client, a.router, a.log)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			_ = a.sess.Clear()
		}
		return err
	}
	return a.emit(map[string]any{"ok": true, "next": dest, "expiresAt": s.ExpiresAt}, func() {
		a.line("ok", "next: "+dest)
	})
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.authed(); err != nil && !errors.Is(err, session.ErrNoSession) {
		return err
	}
	if err := account.Logout(ctx, a.client, a.sess, a.router, a.log); err != nil {
		return err
	}
	a.line("ok")
	return nil
}

func cmdGate(ctx context.Context, a *app, _ []string) error {
	if err := a.authed(); err != nil {
		return err
	}
	dest, err := account.Gate(ctx, a.client, a.router, a.log)
	if err != nil {
		return err
	}
	return a.emit(map[string]string{"next": dest}, func() { a.line(dest) })
}

func cmdOnboard(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "onboard")
	major := fs.String("major", "", "major")
	minor := fs.String("minor", "", "minor (없음 for none)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	if err := account.Onboard(ctx, a.client, a.router, *major, *minor); err != nil {
		return err
	}
	a.line("ok")
	return nil
}

func (a *app) profile(ctx context.Context) (*account.Profile, error) {
	if err := a.authed(); err != nil {
		return nil, err
	}
	p := account.NewProfile(a.client, a.client, a.prompt, a.log)
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func cmdMe(ctx context.Context, a *app, _ []string) error {
	p, err := a.profile(ctx)
	if err != nil {
		return err
	}
	st := p.State()
	return a.emit(st, func() { a.printProfile(st) })
}

func cmdMeEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "me-edit")
	nick := fs.String("nickname", "", "nickname")
	major := fs.String("major", "", "major")
	minor := fs.String("minor", "", "minor (없음 clears it)")
	if err := parse(fs, args); err != nil {
		return err
	}
	p, err := a.profile(ctx)
	if err != nil {
		return err
	}
	p.StartEdit()
	d := p.State().Draft
	cur := ""
	if d.Minor != nil {
		cur = *d.Minor
	}
	p.SetDraft(orDefault(*nick, d.Nickname), orDefault(*major, d.Major), orDefault(*minor, cur))
	if err := p.Save(ctx); err != nil {
		return err
	}
	st := p.State()
	return a.emit(st.User, func() { a.printProfile(st) })
}

func cmdPoints(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "points")
	history := fs.Bool("history", false, "include the point history")
	if err := parse(fs, args); err != nil {
		return err
	}
	if !*history {
		if err := a.authed(); err != nil {
			return err
		}
		if err := a.points.Refresh(ctx); err != nil {
			return err
		}
		bal := a.points.Balance()
		return a.emit(map[string]int{"balance": bal}, func() { a.line(fmt.Sprintf("%dP", bal)) })
	}
	p, err := a.profile(ctx)
	if err != nil {
		return err
	}
	st := p.State()
	return a.emit(map[string]any{"balance": st.Balance, "history": st.History}, func() { a.printPoints(st) })
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "list")
	kw := fs.String("q", "", "keyword")
	sortBy := fs.String("sort", string(catalog.SortLatest), "최신순|추천순|다운로드순 (or latest|recommended|downloads)")
	var f catalog.Filter
	fs.StringVar(&f.Semester, "semester", "", "YYYY-S")
	fs.StringVar(&f.Grade, "grade", "", "grade")
	fs.StringVar(&f.Major, "major", "", "major")
	fs.StringVar(&f.Professor, "professor", "", "professor (substring)")
	fs.StringVar(&f.Category, "category", "", "전공|교양|기초")
	page := fs.Int("page", 1, "page")
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := parseSort(*sortBy)
	if err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	v := catalog.New(a.client, catalog.WithLogger(a.log))
	defer v.Close()
	if err := v.Query(ctx, *kw, f, s, *page); err != nil {
		return err
	}
	st := v.State()
	return a.emit(st, func() { a.printCatalog(st) })
}

func cmdBrowse(ctx context.Context, a *app, _ []string) error {
	if err := a.authed(); err != nil {
		return err
	}
	id, err := tui.Run(ctx, a.client, catalog.WithLogger(a.log), catalog.WithDebounce(a.cfg.Search.Debounce))
	if err != nil || id == 0 {
		return err
	}
	return cmdShow(ctx, a, []string{"-id", fmt.Sprint(id)})
}

// detailView loads material id with the viewer's role resolved.
func (a *app) detailView(ctx context.Context, id int64) (*detail.View, error) {
	if err := a.authed(); err != nil {
		return nil, err
	}
	v := detail.New(id, a.client, detail.Deps{
		Points:   a.points,
		Nav:      a.router,
		Dialog:   a.prompt,
		Saver:    a.saver,
		Log:      a.log,
		Parallel: a.cfg.Download.Parallel,
	})
	if err := v.Load(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func idFlag(fs *flag.FlagSet) *int64 {
	return fs.Int64("id", 0, "material id")
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "show")
	id := idFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	v, err := a.detailView(ctx, *id)
	if err != nil {
		return err
	}
	st := v.State()
	return a.emit(st, func() { a.printDetail(st) })
}

func cmdBuy(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "buy")
	id := idFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	v, err := a.detailView(ctx, *id)
	if err != nil {
		return err
	}
	if err := v.Purchase(ctx); err != nil {
		return err
	}
	return a.emit(map[string]any{"ok": true, "balance": a.points.Balance()}, func() {
		a.line(fmt.Sprintf("balance: %dP", a.points.Balance()))
	})
}

func cmdDownload(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "download")
	id := idFlag(fs)
	dir := fs.String("dir", "", "download directory (default from config)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	if *dir != "" {
		a.saver.Dir = *dir
	}
	v, err := a.detailView(ctx, *id)
	if err != nil {
		return err
	}
	where, err := v.Download(ctx)
	if err != nil {
		return err
	}
	return a.emit(map[string]string{"path": where}, func() { a.line(where) })
}

func cmdReview(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.errw, "review: need add, edit or rm")
		return errUsage
	}
	sub := args[0]
	fs := newFlags(a, "review "+sub)
	id := idFlag(fs)
	rating := fs.String("rating", "", "0-5 in steps of 0.1")
	comment := fs.String("comment", "", "review text")
	if err := parse(fs, args[1:]); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}

	var d detail.Draft
	if sub == "add" || sub == "edit" {
		r, err := parseRating(*rating)
		if err != nil {
			return err
		}
		d = detail.Draft{Rating: r, Comment: *comment}
	}

	v, err := a.detailView(ctx, *id)
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		v.SetDraft(d)
		err = v.SubmitReview(ctx)
	case "edit":
		if err = v.StartEdit(); err == nil {
			v.SetDraft(d)
			err = v.SubmitReview(ctx)
		}
	case "rm":
		err = v.DeleteReview(ctx)
	default:
		fmt.Fprintf(a.errw, "review: unknown subcommand %q\n", sub)
		return errUsage
	}
	if err != nil {
		return err
	}
	st := v.State()
	return a.emit(st.Mine, func() { a.printReviews(st) })
}

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "upload")
	mf := bindMaterialFlags(fs)
	var files fileList
	fs.Var(&files, "file", "PDF to attach (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	form := a.form(upload.Create())
	if err := form.Init(ctx); err != nil {
		return err
	}
	form.SetFields(mf.apply(form.Fields()))
	sel, err := files.read()
	if err != nil {
		return err
	}
	if err := form.Select(sel); err != nil {
		a.prompt.Alert(errs.Message(err, upload.MsgPDFOnly))
		return err
	}
	dest, err := form.Submit(ctx)
	if err != nil {
		return err
	}
	return a.emit(map[string]any{"path": dest, "balance": a.points.Balance()}, func() { a.line(dest) })
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "edit")
	id := idFlag(fs)
	mf := bindMaterialFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	form := a.form(upload.Edit(*id))
	if err := form.Init(ctx); err != nil {
		return err
	}
	form.SetFields(mf.apply(form.Fields()))
	dest, err := form.Submit(ctx)
	if err != nil {
		return err
	}
	return a.emit(map[string]string{"path": dest}, func() { a.line(dest) })
}

func (a *app) form(mode upload.Mode) *upload.Form {
	return upload.New(mode, a.client, upload.Deps{
		Points: a.points,
		Nav:    a.router,
		Dialog: a.prompt,
		Log:    a.log,
	})
}

func cmdRm(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "rm")
	id := idFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	v, err := a.detailView(ctx, *id)
	if err != nil {
		return err
	}
	if err := v.DeleteMaterial(ctx); err != nil {
		return err
	}
	a.line("ok")
	return nil
}

func cmdMine(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "mine")
	tab := fs.String("tab", "purchased", "purchased|uploaded")
	all := fs.Bool("all", false, "load every page")
	if err := parse(fs, args); err != nil {
		return err
	}
	t, err := parseTab(*tab)
	if err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	v := library.New(a.client, a.prompt, a.log)
	if err := v.SwitchTab(ctx, t); err != nil {
		return err
	}
	for *all {
		more, err := v.LoadMore(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	st := v.State()
	return a.emit(st, func() { a.printLibrary(st) })
}

// cmdRemove hides a purchase from the purchased tab for this listing only; the
// server keeps the purchase.
func cmdRemove(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "remove")
	id := idFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := needID(a, fs, *id); err != nil {
		return err
	}
	if err := a.authed(); err != nil {
		return err
	}
	v := library.New(a.client, a.prompt, a.log)
	if err := v.SwitchTab(ctx, library.TabPurchased); err != nil {
		return err
	}
	if err := v.Remove(*id); err != nil {
		return err
	}
	st := v.State()
	return a.emit(st, func() { a.printLibrary(st) })
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
