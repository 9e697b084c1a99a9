package model

import "time"

// 缺省值
const (
	NoTitle       = "No Title"
	NoSummary     = "No summary available."
	UnknownSource = "Unknown"
)

// Article 已入库的文章, URL 唯一
type Article struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	URL         string    `gorm:"size:1000;uniqueIndex;not null" json:"url"`
	Source      string    `gorm:"size:255;not null" json:"source"`
	PublishedAt time.Time `gorm:"index;not null" json:"publishedAt"`
	Summary     string    `gorm:"type:text;not null" json:"summary"`
	ImageURL    *string   `gorm:"size:1000" json:"urlToImage"`
	Category    string    `gorm:"size:100;index" json:"category,omitempty"`
	Relevance   *float64  `gorm:"index" json:"relevance,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RawArticle 从外部源抓取的候选文章(未去重、未摘要)
type RawArticle struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	SourceName  string     `json:"source"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ImageURL    string     `json:"urlToImage,omitempty"`
	Category    string     `json:"category,omitempty"`
}
