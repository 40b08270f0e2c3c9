package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/services"
)

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":1234,"login":"The-Octocat","avatar_url":"https://example.com/o.png"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"email":"old@example.com"},{"email":"octo@example.com","primary":true,"verified":true}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthGitHubFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.AppConfig{
		AppEnv:             "test",
		JWTSecret:          "oauth-secret",
		TokenTTLHours:      1,
		DBDriver:           "sqlite",
		DatabaseURI:        "file:oauthflow?mode=memory&cache=shared",
		LogLevel:           "silent",
		GitHubClientID:     "id",
		GitHubClientSecret: "secret",
		OAuthRedirectBase:  "http://forum.test",
	}
	config.Set(cfg)
	db, err := config.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := config.Migrate(db, models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gh := fakeGitHub(t)
	saved := userInfoURLs
	userInfoURLs = map[string]string{
		"github":       gh.URL + "/user",
		"github_email": gh.URL + "/user/emails",
	}
	defer func() { userInfoURLs = saved }()

	ac := NewAuthController(services.NewUserService(db, nil, nil))
	ac.endpoints = map[string]oauth2.Endpoint{"github": {
		AuthURL:  gh.URL + "/login/oauth/authorize",
		TokenURL: gh.URL + "/login/oauth/access_token",
	}}

	r := gin.New()
	r.GET("/oauth/:provider/login", ac.OAuthRedirect)
	r.GET("/oauth/:provider/callback", ac.OAuthCallback)

	get := func(path string) (int, map[string]json.RawMessage) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var env struct {
			Data map[string]json.RawMessage `json:"data"`
		}
		json.Unmarshal(w.Body.Bytes(), &env)
		return w.Code, env.Data
	}

	code, data := get("/oauth/github/login")
	if code != http.StatusOK {
		t.Fatalf("login = %d", code)
	}
	var state string
	json.Unmarshal(data["state"], &state)
	if state == "" {
		t.Fatal("no state issued")
	}

	if code, _ := get("/oauth/github/callback?code=abc&state=forged"); code != http.StatusBadRequest {
		t.Fatalf("forged state = %d", code)
	}

	code, data = get("/oauth/github/callback?code=abc&state=" + state)
	if code != http.StatusOK {
		t.Fatalf("callback = %d", code)
	}
	var sess services.Session
	json.Unmarshal(data["session"], &sess)
	if sess.Name != "the_octocat" || sess.Email != "octo@example.com" || sess.Role != models.RoleUser {
		t.Fatalf("session = %+v", sess)
	}

	if code, _ := get("/oauth/github/callback?code=abc&state=" + state); code != http.StatusBadRequest {
		t.Fatalf("replayed state = %d", code)
	}
	if code, _ := get("/oauth/gitlab/login"); code != http.StatusBadRequest {
		t.Fatalf("unknown provider = %d", code)
	}
}
