package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/qaforum/qaforum/config"
)

func init() {
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "utils-secret", DBDriver: "sqlite", TokenTTLHours: 2})
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{BadRequest(1, "x"), KindBadRequest, http.StatusBadRequest},
		{Unauthorized(1, "x"), KindUnauthorized, http.StatusUnauthorized},
		{Forbidden(1, "x"), KindForbidden, http.StatusForbidden},
		{NotFound(1, "x"), KindNotFound, http.StatusNotFound},
		{Conflict(1, "x"), KindConflict, http.StatusConflict},
		{NewError(KindMethodNotSupported, 1, "x"), KindMethodNotSupported, http.StatusMethodNotAllowed},
		{NewError(KindTooManyRequests, 1, "x"), KindTooManyRequests, http.StatusTooManyRequests},
		{errors.New("boom"), KindInternal, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound(2, "gone")), KindNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
		if got := KindOf(tt.err).HTTPStatus(); got != tt.status {
			t.Errorf("status of %v = %d, want %d", tt.err, got, tt.status)
		}
		if got := KindForStatus(tt.status); got != tt.kind {
			t.Errorf("KindForStatus(%d) = %s, want %s", tt.status, got, tt.kind)
		}
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) must be empty")
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Internal(50000, "storage error", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if AsAppError(err).Message != "storage error" {
		t.Fatalf("message = %q", AsAppError(err).Message)
	}
}

func TestRenderContent(t *testing.T) {
	tests := []struct {
		name, content, html string
		contains            []string
		excludes            []string
	}{
		{"markdown", "# Title\n\n*em*", "", []string{"<h1", "<em>em</em>"}, nil},
		{"gfm table", "| a | b |\n|---|---|\n| 1 | 2 |", "", []string{"<table>"}, nil},
		{"html wins", "ignored", "<p>kept</p>", []string{"kept"}, []string{"ignored"}},
		{"script stripped", "", `<p onclick="x()">hi</p><script>alert(1)</script>`, []string{"hi"}, []string{"script", "onclick"}},
		{"raw html in markdown", "<img src=x onerror=alert(1)>", "", nil, []string{"onerror"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderContent(tt.content, tt.html)
			if err != nil {
				t.Fatalf("RenderContent: %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("%q missing %q", out, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(out, s) {
					t.Errorf("%q contains %q", out, s)
				}
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"  spaced  ":           "spaced",
		"<b>bold</b> &amp; co": "bold & co",
		"<script>x</script>ok": "ok",
		"e\u0301":              "\u00e9",
	}
	for in, want := range tests {
		if got := PlainText(in); got != want {
			t.Errorf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokens(t *testing.T) {
	token, expiresAt, err := IssueToken(7, "alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if d := time.Until(expiresAt); d < time.Hour || d > 2*time.Hour {
		t.Fatalf("unexpected ttl %v", d)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 7 || claims.Name != "alice" {
		t.Fatalf("claims = %+v", claims)
	}
	if !TokenExpiry(claims, time.Time{}).Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("expiry mismatch %v vs %v", TokenExpiry(claims, time.Time{}), expiresAt)
	}

	if _, err := ParseToken(token + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
	zero, _, _ := GenerateToken(0, "nobody", time.Hour)
	if _, err := ParseToken(zero); err == nil {
		t.Fatal("token without user id accepted")
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") || CheckPassword(hash, "hunter23") {
		t.Fatal("password check mismatch")
	}
	if CheckPassword("", "") {
		t.Fatal("empty hash must never match")
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1146}, false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"wrapped", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), true},
		{"plain", errors.New("duplicate"), false},
	}
	for _, tt := range tests {
		if got := IsDuplicateKey(tt.err); got != tt.want {
			t.Errorf("%s: IsDuplicateKey = %v, want %v", tt.name, got, tt.want)
		}
	}
	if !IsNotFound(fmt.Errorf("x: %w", gorm.ErrRecordNotFound)) {
		t.Error("IsNotFound missed wrapped ErrRecordNotFound")
	}
}

func TestStateStoreFallback(t *testing.T) {
	ctx := context.Background()
	SaveState(ctx, "abc", time.Minute)
	if !ConsumeState(ctx, "abc") {
		t.Fatal("fresh state rejected")
	}
	if ConsumeState(ctx, "abc") {
		t.Fatal("state consumed twice")
	}
	if ConsumeState(ctx, "never-saved") {
		t.Fatal("unknown state accepted")
	}
}

func TestTokenRevocationFallback(t *testing.T) {
	ctx := context.Background()
	if IsTokenRevoked(ctx, "t1") {
		t.Fatal("token revoked before logout")
	}
	RevokeToken(ctx, "t1", time.Now().Add(time.Minute))
	if !IsTokenRevoked(ctx, "t1") {
		t.Fatal("token not revoked after logout")
	}
	RevokeToken(ctx, "t2", time.Now().Add(-time.Minute))
	if IsTokenRevoked(ctx, "t2") {
		t.Fatal("already expired token should not be stored")
	}
}
