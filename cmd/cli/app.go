package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/jokbo/internal/api"
	"github.com/and161185/jokbo/internal/config"
	"github.com/and161185/jokbo/internal/nav"
	"github.com/and161185/jokbo/internal/points"
	"github.com/and161185/jokbo/internal/session"
	"github.com/and161185/jokbo/internal/ui"
)

// app carries everything a command needs.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	client *api.Client
	router *nav.Router
	points *points.Store
	sess   *session.Store
	prompt *ui.Terminal
	saver  ui.DirSaver

	out  io.Writer
	errw io.Writer
	json bool
}

func newApp(cfgPath string, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	router := nav.NewRouter(nav.Root)
	router.Subscribe(func(p string) { log.Debug("navigate", zap.String("path", p)) })

	client, err := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(log.Named("api")),
		api.WithNavigator(router),
	)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		router: router,
		points: points.New(client, log.Named("points")),
		sess:   session.NewStore(cfg.Session.Dir),
		prompt: ui.NewTerminal(stdin, stderr),
		saver:  ui.DirSaver{Dir: cfg.Download.Dir},
		out:    stdout,
		errw:   stderr,
	}, nil
}

// newLogger is a development logger at debug level and a production one otherwise.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func (a *app) close() { _ = a.log.Sync() }

// authed installs the stored session cookie.
func (a *app) authed() error {
	s, err := a.sess.Load()
	if err != nil {
		return err
	}
	a.client.SetSessionCookie(a.cfg.Session.CookieName, s.Cookie)
	return nil
}
