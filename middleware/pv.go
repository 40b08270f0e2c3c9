package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

// ContextViewKey is set by handlers to the PageView path the request should count towards.
const ContextViewKey = "view_path"

// ViewRecorder counts views per day and path for successful requests that declared one.
func ViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.GetString(ContextViewKey)
		if path == "" {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		if err := RecordView(db, path, time.Now()); err != nil {
			utils.Sugar.Warnf("record view failed path=%s err=%v", path, err)
		}
	}
}

// RecordView increments the counter of path for the local day of at.
func RecordView(db *gorm.DB, path string, at time.Time) error {
	local := at.In(time.Local)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	// Atomic upsert to avoid duplicate key errors under concurrency
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("page_views.count + 1"), "updated_at": time.Now()}),
	}).Create(&models.PageView{Date: midnight, Path: path, Count: 1}).Error
}
