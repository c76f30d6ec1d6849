package model

import "time"

// Post is the source-of-truth record behind a timeline entry. Post CRUD lives in
// the post service; this core only reads recent posts during feed regeneration.
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string    `gorm:"type:varchar(36);index:idx_post_author_created"`
	Content   string    `gorm:"type:text"`
	MediaURL  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_post_author_created"`
	UpdatedAt time.Time
}

func (Post) TableName() string { return "posts" }
