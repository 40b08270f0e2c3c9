package services

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "test-secret", DBDriver: "sqlite", TokenTTLHours: 1})

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := config.Open(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: "file:" + name + "?mode=memory&cache=shared",
		LogLevel:    "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db, models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role) *Session {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return SessionFromUser(&u)
}

func addQuestion(t *testing.T, qs *QuestionService, sess *Session, title string) *QuestionDetail {
	t.Helper()
	q, err := qs.Add(context.Background(), sess, AddQuestionInput{Title: title, Content: "body of " + title})
	if err != nil {
		t.Fatalf("add question %q: %v", title, err)
	}
	return q
}

func hideQuestion(t *testing.T, db *gorm.DB, id uint) {
	t.Helper()
	if err := db.Model(&models.Question{}).Where("id = ?", id).Update("hidden", true).Error; err != nil {
		t.Fatalf("hide question %d: %v", id, err)
	}
}

func expectKind(t *testing.T, err error, want utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := utils.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}
