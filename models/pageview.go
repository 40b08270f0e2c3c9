package models

import (
	"strconv"
	"time"
)

// PageView stores aggregated view counts per day and path.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"index:idx_pv_date_path,unique;type:date;not null" json:"date"`
	Path      string    `gorm:"index;index:idx_pv_date_path,unique;size:255;not null" json:"path"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuestionViewPath is the PageView path under which views of a question are counted.
func QuestionViewPath(id uint) string {
	return "/q/" + strconv.FormatUint(uint64(id), 10)
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Question{}, &Comment{}, &Upvote{}, &PageView{}}
}
