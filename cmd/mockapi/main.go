// Command jokbo-mockapi serves an in-memory jokbo backend for development and demos.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/config"
	"github.com/and161185/jokbo/internal/limiter"
	"github.com/and161185/jokbo/internal/mockapi"
	"github.com/and161185/jokbo/internal/model"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads the config, optionally seeds demo data and serves until interrupted.
func main() {
	cfgPath := flag.String("config", "", "config file")
	addr := flag.String("addr", "", "listen address (overrides mock.addr)")
	seed := flag.Bool("seed", false, "create a demo user with sample materials")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadServer(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *addr != "" {
		cfg.Mock.Addr = *addr
	}
	if cfg.Mock.SignKey == "" {
		logger.Warn("mock.sign_key is empty, using the built-in development key")
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Mock.Addr),
	)

	mc := mockapi.Config{
		SignKey:    []byte(cfg.Mock.SignKey),
		CookieName: cfg.Session.CookieName,
		SessionTTL: cfg.Mock.SessionTTL,
		Logger:     logger.Named("http"),
	}
	if cfg.Mock.AuthMaxFails > 0 {
		mc.Limiter = limiter.NewMemory(cfg.Mock.AuthBlock, cfg.Mock.AuthMaxFails, cfg.Mock.AuthBlock)
	}
	srv := mockapi.New(mc)

	if *seed {
		tok, err := seedDemo(srv)
		if err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
		logger.Info("demo session issued; run `jokbo login -cookie <token>`", zap.String("token", tok))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Mock.Addr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = hs.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

// seedDemo adds an onboarded demo user, a second author with two materials, and
// returns a session token for the demo user.
func seedDemo(srv *mockapi.Server) (string, error) {
	st := srv.Store()
	demo := st.AddUser("demo@hufs.ac.kr", "데모", "컴퓨터공학부", true)
	author := st.AddUser("senior@hufs.ac.kr", "선배", "컴퓨터공학부", true)

	pdf := func(name string) mockapi.File {
		return mockapi.File{Name: name, Data: []byte("%PDF-1.4\n% " + name + "\n%%EOF\n")}
	}
	st.AddMaterial(author, model.MaterialRequest{
		Title: "자료구조 중간고사 정리", Year: 2024, Semester: 1, ProfessorName: "김교수",
		Grade: "2학년", CourseDivision: "전공", CourseName: "자료구조",
		Description: "트리, 힙, 해시 위주",
	}, []mockapi.File{pdf("ds-midterm.pdf")})
	osID := st.AddMaterial(author, model.MaterialRequest{
		Title: "운영체제 기말 족보", Year: 2024, Semester: 2, ProfessorName: "이교수",
		Grade: "3학년", CourseDivision: "전공", CourseName: "운영체제",
	}, []mockapi.File{pdf("os-final-1.pdf"), pdf("os-final-2.pdf")})
	st.MarkPurchased(demo, osID)
	st.AddReview(demo, osID, 4.5, "스케줄링 문제가 그대로 나왔어요")

	tok, _, err := srv.IssueSession(demo)
	return tok, err
}
