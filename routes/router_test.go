package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/models"
)

type envelope struct {
	Code    int             `json:"code"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) call(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		c.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (c *client) query(name string, input interface{}) (int, envelope) {
	c.t.Helper()
	b, _ := json.Marshal(input)
	return c.call(http.MethodGet, "/api/rpc/"+name+"?input="+url.QueryEscape(string(b)), nil)
}

func (c *client) mutate(name string, input interface{}) (int, envelope) {
	c.t.Helper()
	return c.call(http.MethodPost, "/api/rpc/"+name, input)
}

func (c *client) as(token string) *client {
	return &client{t: c.t, h: c.h, token: token}
}

func newTestServer(t *testing.T) (*client, *gorm.DB) {
	t.Helper()
	cfg := config.AppConfig{
		AppEnv:             "test",
		JWTSecret:          "router-secret",
		TokenTTLHours:      1,
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		DBDriver:           "sqlite",
		DatabaseURI:        "file:routes_" + t.Name() + "?mode=memory&cache=shared",
		LogLevel:           "silent",
		AdminUsernames:     []string{"boss"},
	}
	config.Set(cfg)
	db, err := config.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := config.Migrate(db, models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &client{t: t, h: SetupRouter(db)}, db
}

func register(t *testing.T, c *client, name string) string {
	t.Helper()
	code, env := c.call(http.MethodPost, "/api/auth/register", map[string]string{"name": name, "password": "secret1"})
	if code != http.StatusOK {
		t.Fatalf("register %s: %d %s", name, code, env.Message)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.Token == "" {
		t.Fatalf("register %s: no token in %s", name, env.Data)
	}
	return out.Token
}

func TestHealth(t *testing.T) {
	c, _ := newTestServer(t)
	if code, _ := c.call(http.MethodGet, "/health", nil); code != http.StatusOK {
		t.Fatalf("/health = %d", code)
	}
	code, env := c.query("healthz", nil)
	if code != http.StatusOK || string(env.Data) != `"yay!"` {
		t.Fatalf("healthz = %d %s", code, env.Data)
	}
	if code, env := c.call(http.MethodGet, "/nope", nil); code != http.StatusNotFound || env.Kind != "NOT_FOUND" {
		t.Fatalf("unknown route = %d %q", code, env.Kind)
	}
}

func TestQuestionFlow(t *testing.T) {
	anon, db := newTestServer(t)
	alice := anon.as(register(t, anon, "alice"))
	bob := anon.as(register(t, anon, "bob"))
	boss := anon.as(register(t, anon, "boss"))

	code, env := anon.mutate("question.add", map[string]string{"title": "t", "content": "c"})
	if code != http.StatusUnauthorized || env.Kind != "UNAUTHORIZED" {
		t.Fatalf("anonymous add = %d %q", code, env.Kind)
	}

	code, env = alice.mutate("question.add", map[string]string{"title": "", "content": "c"})
	if code != http.StatusBadRequest || env.Kind != "BAD_REQUEST" {
		t.Fatalf("empty title = %d %q", code, env.Kind)
	}

	code, env = alice.mutate("question.add", map[string]string{"title": "Why does X happen?", "content": "details"})
	if code != http.StatusOK {
		t.Fatalf("add = %d %s", code, env.Message)
	}
	var added struct {
		ID     uint `json:"id"`
		Hidden bool `json:"hidden"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	}
	json.Unmarshal(env.Data, &added)
	if added.Author.Name != "alice" || added.Hidden {
		t.Fatalf("added = %+v", added)
	}
	id := map[string]uint{"id": added.ID}

	if code, env = bob.mutate("question.like", id); code != http.StatusOK {
		t.Fatalf("like = %d %s", code, env.Message)
	}
	if code, env = bob.mutate("question.like", id); code != http.StatusInternalServerError || env.Kind != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("second like = %d %q", code, env.Kind)
	}
	if code, env = bob.mutate("question.edit", map[string]interface{}{"id": added.ID, "data": map[string]string{"title": "mine now"}}); code != http.StatusForbidden {
		t.Fatalf("bob edit = %d %q", code, env.Kind)
	}
	if code, env = boss.mutate("question.delete", id); code != http.StatusForbidden {
		t.Fatalf("admin delete = %d %q", code, env.Kind)
	}

	if code, env = anon.query("question.detail", id); code != http.StatusOK {
		t.Fatalf("detail = %d %s", code, env.Message)
	}

	if code, env = bob.mutate("question.hide", id); code != http.StatusForbidden {
		t.Fatalf("user hide = %d %q", code, env.Kind)
	}
	if code, env = boss.mutate("question.hide", id); code != http.StatusOK {
		t.Fatalf("admin hide = %d %s", code, env.Message)
	}
	if code, env = anon.query("question.detail", id); code != http.StatusNotFound {
		t.Fatalf("anonymous detail of hidden = %d", code)
	}
	if code, env = bob.query("question.detail", id); code != http.StatusNotFound {
		t.Fatalf("stranger detail of hidden = %d", code)
	}
	if code, env = alice.query("question.detail", id); code != http.StatusOK {
		t.Fatalf("author detail of hidden = %d", code)
	}
	if code, env = bob.mutate("question.unlike", id); code != http.StatusNotFound {
		t.Fatalf("unlike on hidden by stranger = %d", code)
	}

	code, env = anon.query("question.feed", map[string]int{"take": 10})
	var feed struct {
		QuestionCount int64 `json:"questionCount"`
	}
	json.Unmarshal(env.Data, &feed)
	if code != http.StatusOK || feed.QuestionCount != 0 {
		t.Fatalf("feed = %d %s", code, env.Data)
	}

	var views int64
	db.Model(&models.PageView{}).Where("path = ?", models.QuestionViewPath(added.ID)).Select("COALESCE(SUM(count),0)").Scan(&views)
	if views != 2 {
		t.Fatalf("views = %d, want 2", views)
	}
}

func TestAuthSessionAndLogout(t *testing.T) {
	anon, _ := newTestServer(t)
	token := register(t, anon, "carol")
	carol := anon.as(token)

	code, env := anon.call(http.MethodPost, "/api/auth/register", map[string]string{"name": "carol", "password": "secret1"})
	if code != http.StatusConflict || env.Kind != "CONFLICT" {
		t.Fatalf("duplicate register = %d %q", code, env.Kind)
	}
	code, env = anon.call(http.MethodPost, "/api/auth/login", map[string]string{"name": "carol", "password": "bad"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", code)
	}
	if code, env = anon.call(http.MethodPost, "/api/auth/login", map[string]string{"name": "carol", "password": "secret1"}); code != http.StatusOK {
		t.Fatalf("login = %d %s", code, env.Message)
	}

	_, env = anon.call(http.MethodGet, "/api/auth/session", nil)
	if string(env.Data) != "" && string(env.Data) != "null" {
		t.Fatalf("anonymous session = %s", env.Data)
	}
	_, env = carol.call(http.MethodGet, "/api/auth/session", nil)
	var sess struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	json.Unmarshal(env.Data, &sess)
	if sess.Name != "carol" || sess.Role != "USER" {
		t.Fatalf("session = %s", env.Data)
	}

	if code, env = carol.call(http.MethodPost, "/api/auth/logout", nil); code != http.StatusOK {
		t.Fatalf("logout = %d %s", code, env.Message)
	}
	if code, _ = carol.call(http.MethodGet, "/api/auth/session", nil); code != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d", code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	anon, _ := newTestServer(t)
	dan := anon.as(register(t, anon, "dan"))
	for i := 0; i < 2; i++ {
		if code, env := dan.mutate("question.add", map[string]string{"title": fmt.Sprintf("q%d", i), "content": "c"}); code != http.StatusOK {
			t.Fatalf("add = %d %s", code, env.Message)
		}
	}

	code, env := anon.call(http.MethodGet, "/api/stats", nil)
	var stats struct {
		UserCount     int64 `json:"userCount"`
		QuestionCount int64 `json:"questionCount"`
	}
	json.Unmarshal(env.Data, &stats)
	if code != http.StatusOK || stats.UserCount != 1 || stats.QuestionCount != 2 {
		t.Fatalf("stats = %d %s", code, env.Data)
	}
}
