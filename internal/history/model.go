// Package history persists detection results per user.
package history

import (
	"time"

	"github.com/tphakala/leafscan/internal/conversation"
)

// Record is one completed detection. Rows are only updated afterwards to
// attach the chat transcript.
type Record struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"column:email;size:255;index;not null" json:"user"`
	Label        string    `gorm:"column:disease;size:100" json:"disease"`
	Advice       string    `gorm:"column:advice;type:text" json:"advice"`
	ImagePath    string    `gorm:"column:image_path;size:1024" json:"image_path"`
	Conversation string    `gorm:"column:conversations;type:text" json:"-"`
	SessionID    string    `gorm:"column:session_id;size:36;index" json:"session_id,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;index" json:"created_at"`
}

// TableName keeps the table name used by earlier releases.
func (Record) TableName() string {
	return "history"
}

// Turns decodes the stored transcript.
func (r *Record) Turns() ([]conversation.Turn, error) {
	return conversation.Decode(r.Conversation)
}
