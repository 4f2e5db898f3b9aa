package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) upload(path, field, filename, content string, mod func(*http.Request)) *httptest.ResponseRecorder {
	env.T.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(env.T, err)
	_, err = fw.Write([]byte(content))
	require.NoError(env.T, err)
	require.NoError(env.T, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	if mod != nil {
		mod(req)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func TestRestoreImage(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("username", "password123")
	sess := env.login("username", "password123")

	rec := env.upload("/api/images/restore", "file", "old_photo.png", "png-bytes", sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.Equal(t, "old_photo.png", body["name"])
	require.Equal(t, float64(len("png-bytes")), body["size"])
	location := body["location"].(string)
	require.True(t, strings.HasPrefix(location, "/static/restored/"))
	require.True(t, strings.HasSuffix(location, ".png"))

	// The restored file is served back from the static dir.
	served := env.do(http.MethodGet, location, nil, nil)
	require.Equal(t, http.StatusOK, served.Code)
	require.Equal(t, "png-bytes", served.Body.String())

	restored := env.Events.byType("image_restored")
	require.Len(t, restored, 1)
	require.Equal(t, "old_photo.png", restored[0].Event["name"])
}

func TestRestoreRequiresFile(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("username", "password123")
	sess := env.login("username", "password123")

	rec := env.upload("/api/images/restore", "attachment", "photo.png", "data", sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing file", decodeBody(t, rec)["detail"])
}

func TestRestoreRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload("/api/images/restore", "file", "photo.png", "data", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListImagesOwnOnly(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("username", "password123")
	env.createUser("other_user", "password123")
	sess := env.login("username", "password123")
	other := env.login("other_user", "password123")

	rec := env.upload("/api/images/restore", "file", "mine.png", "data", sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	mine := env.do(http.MethodGet, "/api/images", nil, sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusOK, mine.Code)
	var images []map[string]interface{}
	require.NoError(t, json.Unmarshal(mine.Body.Bytes(), &images))
	require.Len(t, images, 1)
	require.Equal(t, "mine.png", images[0]["name"])

	theirs := env.do(http.MethodGet, "/api/images", nil, other.withBearer(other.AccessToken))
	require.Equal(t, http.StatusOK, theirs.Code)
	var none []map[string]interface{}
	require.NoError(t, json.Unmarshal(theirs.Body.Bytes(), &none))
	require.Len(t, none, 0)
}

func TestSearchWithoutBackend(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("username", "password123")
	sess := env.login("username", "password123")

	missing := env.do(http.MethodGet, "/api/images/search", nil, sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusBadRequest, missing.Code)

	rec := env.do(http.MethodGet, "/api/images/search?q=photo", nil, sess.withBearer(sess.AccessToken))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
