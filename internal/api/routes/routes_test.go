package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/metrics"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/providers/stt"
	"github.com/yoockh/scribe/internal/repositories/kv"
	dbrepo "github.com/yoockh/scribe/internal/repositories/relational"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/testutil"
)

type fakeProvider struct {
	text string
	err  error
}

func (p *fakeProvider) Transcribe(_ context.Context, a stt.Audio) (*stt.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &stt.Result{Text: p.text, Language: "en", Duration: time.Second}, nil
}

func (p *fakeProvider) Name() string          { return "fake" }
func (p *fakeProvider) Model() string         { return "tiny" }
func (p *fakeProvider) Close() error          { return nil }
func (p *fakeProvider) ConcurrencySafe() bool { return true }

type app struct {
	r        *gin.Engine
	db       *gorm.DB
	dir      string
	provider *fakeProvider
}

func newApp(t *testing.T, uploadsRequireAuth bool) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	dir := t.TempDir()
	log := logger.Discard()
	m := metrics.New()
	provider := &fakeProvider{text: "hello world"}
	store := storage.NewLocalStore(dir)

	users, err := services.NewUserService(dbrepo.NewUserRepo(db), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := services.NewSessionService(kv.NewSessionRepo(cache.NewMemoryCache()), []byte("test-secret"), time.Hour)
	transcriptions := services.NewTranscriptionService(store, provider, dbrepo.NewTranscriptionRepo(db), m, log,
		services.TranscriptionOptions{MaxUploadBytes: 1 << 20})

	r, err := NewRouter(Deps{
		Log:            log,
		Metrics:        m,
		Sessions:       sessions,
		Pages:          handlers.NewPageHandler(provider.Name(), provider.Model()),
		Auth:           handlers.NewAuthHandler(users, sessions, false),
		Transcriptions: handlers.NewTranscriptionHandler(transcriptions, provider.Model()),
		Files:          handlers.NewFileHandler(store, transcriptions, uploadsRequireAuth),
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)
	return &app{r: r, db: db, dir: dir, provider: provider}
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.r.ServeHTTP(rec, req)
	return rec
}

func (a *app) rows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, a.db.Model(&models.Transcription{}).Count(&n).Error)
	return n
}

func (a *app) files(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(a.dir)
	require.NoError(t, err)
	return entries
}

func uploadRequest(t *testing.T, filename, content, token string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func jsonRequest(method, path string, body any, token string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (a *app) signup(t *testing.T, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "pw-" + username}

	rec := a.do(jsonRequest(http.MethodPost, "/register", creds, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(jsonRequest(http.MethodPost, "/login", creds, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, username, resp.User.Username)
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()
	var e handlers.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestGuestTranscriptionIsNotStored(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(uploadRequest(t, "song.mp3", "ID3 audio", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.GuestTranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello world", resp.Text)
	assert.False(t, resp.Saved)
	assert.Regexp(t, `^\d{14}_song\.mp3$`, resp.Filename)
	assert.Zero(t, a.rows(t))
}

func TestRejectedExtensionWritesNothing(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(uploadRequest(t, "photo.png", "PNG", ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", string(decodeError(t, rec).Code))
	assert.Empty(t, a.files(t))
	assert.Zero(t, a.rows(t))
}

func TestMissingAudioField(t *testing.T) {
	a := newApp(t, false)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := a.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserErrorsRedirectWithNotice(t *testing.T) {
	a := newApp(t, false)

	req := uploadRequest(t, "photo.png", "PNG", "")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	rec := a.do(req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var notice *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "notice" {
			notice = c
		}
	}
	require.NotNil(t, notice)
	v, err := url.QueryUnescape(notice.Value)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, "warning|unsupported file type"), v)

	// the next page shows and clears it
	page := httptest.NewRequest(http.MethodGet, "/", nil)
	page.Header.Set("Accept", "text/html")
	page.AddCookie(notice)
	rec = a.do(page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")
}

func TestDownloadTextEchoesText(t *testing.T) {
	a := newApp(t, false)

	form := url.Values{"text": {"olá mundo\nsecond line"}}
	req := httptest.NewRequest(http.MethodPost, "/download-text", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := a.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "olá mundo\nsecond line", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Regexp(t, `^attachment; filename="transcription_\d{14}\.txt"$`, rec.Header().Get("Content-Disposition"))

	rec = a.do(jsonRequest(http.MethodPost, "/download-text", map[string]string{"text": "json body"}, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "json body", rec.Body.String())
}

func TestDownloadTextRejectsMalformedJSON(t *testing.T) {
	a := newApp(t, false)

	req := httptest.NewRequest(http.MethodPost, "/download-text", strings.NewReader(`{"text": `))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := a.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", string(decodeError(t, rec).Code))
}

func TestRegisterExplainsFailedRule(t *testing.T) {
	a := newApp(t, false)

	tests := []struct {
		name, username, password, want string
	}{
		{"too long", strings.Repeat("x", services.MaxUsernameLen+1), "pw", "username must be 1 to 80 characters with no control characters"},
		{"control character", "bad\x01name", "pw", "username must be 1 to 80 characters with no control characters"},
		{"missing password", "carol", "", "username and password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]string{"username": tt.username, "password": tt.password}
			rec := a.do(jsonRequest(http.MethodPost, "/register", body, ""))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec).Message)
		})
	}
}

func TestAccountsAndHistory(t *testing.T) {
	a := newApp(t, false)
	alice := a.signup(t, "alice")
	bob := a.signup(t, "bob")

	rec := a.do(jsonRequest(http.MethodPost, "/register", map[string]string{"username": "alice", "password": "other"}, ""))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(jsonRequest(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong"}, ""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decodeError(t, rec).Message)

	rec = a.do(jsonRequest(http.MethodPost, "/register", map[string]string{"username": " ", "password": "x"}, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(uploadRequest(t, "memo.wav", "RIFF", alice))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created handlers.TranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "hello world", created.Text)
	assert.Contains(t, string(created.Metadata), `"provider":"fake"`)

	t.Run("own list", func(t *testing.T) {
		rec := a.do(jsonRequest(http.MethodGet, "/my", nil, alice))
		require.Equal(t, http.StatusOK, rec.Code)
		var list handlers.ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Items, 1)
		assert.Equal(t, created.ID, list.Items[0].ID)
	})

	t.Run("lists are disjoint", func(t *testing.T) {
		rec := a.do(jsonRequest(http.MethodGet, "/my", nil, bob))
		require.Equal(t, http.StatusOK, rec.Code)
		var list handlers.ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Empty(t, list.Items)
	})

	t.Run("download own", func(t *testing.T) {
		rec := a.do(jsonRequest(http.MethodGet, fmt.Sprintf("/download/%d", created.ID), nil, alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello world", rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "_memo.txt")
	})

	t.Run("download foreign is not found", func(t *testing.T) {
		rec := a.do(jsonRequest(http.MethodGet, fmt.Sprintf("/download/%d", created.ID), nil, bob))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = a.do(jsonRequest(http.MethodGet, "/download/abc", nil, bob))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		rec := a.do(jsonRequest(http.MethodGet, "/logout", nil, bob))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = a.do(jsonRequest(http.MethodGet, "/my", nil, bob))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLongFilenameIsStored(t *testing.T) {
	a := newApp(t, false)
	token := a.signup(t, "alice")

	rec := a.do(uploadRequest(t, strings.Repeat("a", 250)+".mp3", "ID3", token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handlers.TranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.LessOrEqual(t, len(created.Filename), storage.MaxStoredNameLen)
	assert.True(t, strings.HasSuffix(created.Filename, ".mp3"), created.Filename)

	files := a.files(t)
	require.Len(t, files, 1)
	assert.Equal(t, created.Filename, files[0].Name())
}

func TestFailedTranscriptionAddsNoRow(t *testing.T) {
	a := newApp(t, false)
	token := a.signup(t, "alice")
	a.provider.err = errors.New("engine exploded")

	rec := a.do(uploadRequest(t, "song.mp3", "ID3", token))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_FAILURE", string(decodeError(t, rec).Code))
	assert.Zero(t, a.rows(t))
	assert.Empty(t, a.files(t))
}

func TestProtectedRoutes(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(jsonRequest(http.MethodGet, "/my", nil, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(jsonRequest(http.MethodGet, "/my", nil, "not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/my", nil)
	req.Header.Set("Accept", "text/html")
	rec = a.do(req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestBrowserLoginSetsCookie(t *testing.T) {
	a := newApp(t, false)
	a.signup(t, "carol")

	form := url.Values{"username": {"carol"}, "password": {"pw-carol"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := a.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	page := httptest.NewRequest(http.MethodGet, "/my", nil)
	page.Header.Set("Accept", "text/html")
	page.AddCookie(session)
	rec = a.do(page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "My transcriptions")
	assert.Contains(t, rec.Body.String(), "carol")
}

func TestUploadsOpenByDefault(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(uploadRequest(t, "song.mp3", "ID3 audio", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.GuestTranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = a.do(jsonRequest(http.MethodGet, "/uploads/"+resp.Filename, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3 audio", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rec = a.do(jsonRequest(http.MethodGet, "/uploads/missing.mp3", nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(jsonRequest(http.MethodGet, "/uploads/..%2Fsecret", nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadsRequireOwnership(t *testing.T) {
	a := newApp(t, true)
	alice := a.signup(t, "alice")
	bob := a.signup(t, "bob")

	rec := a.do(uploadRequest(t, "song.mp3", "ID3 audio", alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created handlers.TranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	path := "/uploads/" + created.Filename
	assert.Equal(t, http.StatusUnauthorized, a.do(jsonRequest(http.MethodGet, path, nil, "")).Code)
	assert.Equal(t, http.StatusNotFound, a.do(jsonRequest(http.MethodGet, path, nil, bob)).Code)
	assert.Equal(t, http.StatusOK, a.do(jsonRequest(http.MethodGet, path, nil, alice)).Code)
}

func TestIndexPingAndMetrics(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(jsonRequest(http.MethodGet, "/", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var info handlers.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "fake", info.Provider)
	assert.Contains(t, info.Extensions, "webm")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec = a.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Audio transcription")

	rec = a.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scribe_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
