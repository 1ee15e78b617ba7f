package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Str0ng!pass"

// testEnv is a running API over SQLite, miniredis and an in-memory object store.
type testEnv struct {
	server *Server
	app    *fiber.App
	mr     *miniredis.Miniredis
	media  *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the configuration before the server is built.
func newTestEnvWith(t *testing.T, adjust func(*config.Config)) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	media := storage.NewMemoryStore()
	cfg := &config.Config{
		JWTSecret:            "test-secret-that-is-long-enough-for-hs256",
		PageSize:             10,
		ImageMaxUploadSizeMB: 1,
	}
	if adjust != nil {
		adjust(cfg)
	}

	s, err := NewServerWithDeps(cfg, db, rdb, media)
	require.NoError(t, err)

	return &testEnv{server: s, app: s.NewApp(), mr: mr, media: media}
}

// do sends a request and returns the response with its body read.
func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// request sends an optional JSON body with an optional bearer token.
func (e *testEnv) request(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

// signup registers username and returns its access and refresh tokens.
func (e *testEnv) signup(t *testing.T, username string) tokenPair {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var pair tokenPair
	require.NoError(t, json.Unmarshal(body, &pair))
	require.NotEmpty(t, pair.Access)
	return pair
}

// createPost creates a post as token and returns its slug.
func (e *testEnv) createPost(t *testing.T, token, title string, tags ...string) string {
	t.Helper()
	if tags == nil {
		tags = []string{}
	}
	resp, body := e.request(t, http.MethodPost, "/api/posts", token, map[string]any{
		"title": title,
		"body":  "body of " + title,
		"tags":  tags,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal(body, &post))
	return post.Slug
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type postPage struct {
	Page    int  `json:"page"`
	Next    *int `json:"next"`
	Results []struct {
		Slug      string `json:"slug"`
		LikeCount int64  `json:"like_count"`
		IsLiked   bool   `json:"is_liked"`
	} `json:"results"`
}

func (p postPage) slugs() []string {
	out := make([]string, 0, len(p.Results))
	for _, r := range p.Results {
		out = append(out, r.Slug)
	}
	return out
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
