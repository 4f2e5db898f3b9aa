package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/config"
	"github.com/arklight/photo_restoration/internal/handlers"
	"github.com/arklight/photo_restoration/internal/revocation"
	"github.com/arklight/photo_restoration/internal/tokens"
	httpserver "github.com/arklight/photo_restoration/internal/transport/http"
)

type recordedEvent struct {
	Topic string
	Key   string
	Event map[string]interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, _ := event.(map[string]interface{})
	r.events = append(r.events, recordedEvent{Topic: topic, Key: key, Event: ev})
	return nil
}

func (r *eventRecorder) byType(eventType string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, ev := range r.events {
		if ev.Event["type"] == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// copyProcessor stands in for the external restoration command.
type copyProcessor struct{}

func (copyProcessor) Restore(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Redis  *miniredis.Miniredis
	Codec  *tokens.Codec
	Events *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec := &tokens.Codec{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	revoked := revocation.NewStore(rdb)
	authenticator := &auth.Authenticator{Codec: codec, Revoked: revoked, DB: db}
	events := &eventRecorder{}

	staticDir := t.TempDir()

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		Auth:        authenticator,
		AuthHandler: &handlers.AuthHandler{DB: db, Codec: codec, Revoked: revoked, Events: events},
		UserHandler: &handlers.UserHandler{DB: db, Revoked: revoked, Events: events},
		RoleHandler: &handlers.RoleHandler{DB: db},
		ImageHandler: &handlers.ImageHandler{
			DB:         db,
			Processor:  copyProcessor{},
			StaticPath: staticDir,
			Events:     events,
		},
		StaticPath: staticDir,
	})

	return &testEnv{T: t, E: e, DB: db, Redis: mr, Codec: codec, Events: events}
}

func (env *testEnv) do(method, path string, body interface{}, mod func(*http.Request)) *httptest.ResponseRecorder {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if mod != nil {
		mod(req)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (env *testEnv) createUser(username, password string) {
	env.T.Helper()
	rec := env.do(http.MethodPost, "/api/users", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.Equal(env.T, http.StatusCreated, rec.Code, rec.Body.String())
}

type loginSession struct {
	AccessToken  string
	RefreshToken string
	Cookies      []*http.Cookie
}

func (s *loginSession) cookie(name string) *http.Cookie {
	for _, ck := range s.Cookies {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// withCookies attaches the session cookies and the CSRF header matching the
// given csrf cookie name.
func (s *loginSession) withCookies(csrfCookie string) func(*http.Request) {
	return func(req *http.Request) {
		for _, ck := range s.Cookies {
			req.AddCookie(ck)
		}
		if csrfCookie != "" {
			if ck := s.cookie(csrfCookie); ck != nil {
				req.Header.Set(auth.CSRFHeader, ck.Value)
			}
		}
	}
}

func (s *loginSession) withBearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
}

func (env *testEnv) login(username, password string) *loginSession {
	env.T.Helper()
	rec := env.do(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(env.T, rec)
	sess := &loginSession{
		AccessToken:  body["access_token"].(string),
		RefreshToken: body["refresh_token"].(string),
		Cookies:      rec.Result().Cookies(),
	}
	require.NotEmpty(env.T, sess.AccessToken)
	require.NotEmpty(env.T, sess.RefreshToken)
	return sess
}
