package mockapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/limiter"
)

const userIDKey = "mock.userID"

// IssueSession creates a signed HS256 session token for userID.
func (s *Server) IssueSession(userID int64) (string, time.Time, error) {
	now := s.store.now()
	exp := now.Add(s.cfg.SessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.cfg.SignKey)
	return signed, exp, err
}

// parseSession verifies the token and returns its subject as a user id.
func (s *Server) parseSession(tok string) (int64, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.SignKey, nil
	}, jwt.WithTimeFunc(s.store.now), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.New("bad subject")
	}
	return id, nil
}

// requireSession rejects requests without a valid session cookie. With a limiter
// configured, a client that keeps sending bad tokens is answered 429 until its
// block expires.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := c.Cookie(s.cfg.CookieName)
		if err != nil || tok == "" {
			abortError(c, 401, "로그인이 필요합니다.")
			return
		}
		key := limiter.HashIP(c.ClientIP())
		if s.cfg.Limiter != nil {
			if ok, wait := s.cfg.Limiter.Allow(key); !ok {
				tooMany(c, wait)
				return
			}
		}
		id, err := s.parseSession(tok)
		if err != nil {
			if s.cfg.Limiter != nil {
				if blocked, _ := s.cfg.Limiter.Failure(key); blocked {
					s.cfg.Logger.Warn("client blocked after invalid sessions", zap.String("client", key[:12]))
				}
			}
			abortError(c, 401, "세션이 만료되었습니다.")
			return
		}
		if s.cfg.Limiter != nil {
			s.cfg.Limiter.Success(key)
		}
		if _, err := s.store.me(id); err != nil {
			abortError(c, 401, "로그인이 필요합니다.")
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

func tooMany(c *gin.Context, wait time.Duration) {
	c.Header("Retry-After", fmt.Sprint(int(math.Ceil(wait.Seconds()))))
	abortError(c, http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.")
}
