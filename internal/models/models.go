package models

import "time"

type Profile struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"type:varchar(128);not null" json:"name"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	ProfileID    uint64     `gorm:"index;not null" json:"profile_id"`
	Profile      *Profile   `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	ResetToken   *string    `gorm:"type:varchar(64);index" json:"-"`
	ResetExpires *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// ActiveSession holds the single live session per user. Login replaces
// all rows for the user with one fresh row inside a transaction; a JWT
// whose embedded token no longer matches any row is rejected.
type ActiveSession struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionToken string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"session_token"`
	UserID       uint64    `gorm:"index;not null" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ActiveSession) TableName() string { return "active_sessions" }

type Category struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string { return "categories" }

type Subcategory struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(128);not null" json:"name"`
	CategoryID uint64    `gorm:"index;not null" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Subcategory) TableName() string { return "subcategories" }

type Keyword struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Word      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"word"`
	CreatedAt time.Time `json:"created_at"`
}

func (Keyword) TableName() string { return "keywords" }

type Document struct {
	ID            uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string       `gorm:"type:varchar(255);not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description"`
	Solution      string       `gorm:"type:text" json:"solution"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	SubcategoryID uint64       `gorm:"index;not null" json:"subcategory_id"`
	Subcategory   *Subcategory `gorm:"foreignKey:SubcategoryID" json:"subcategory,omitempty"`
	// Opaque fixed-length vector serialized as JSON; no similarity
	// search happens on this side.
	Embedding *string   `gorm:"type:text" json:"-"`
	FileURL   *string   `gorm:"type:varchar(512)" json:"file_url,omitempty"`
	FilePath  *string   `gorm:"type:varchar(512)" json:"file_path,omitempty"`
	FileType  *string   `gorm:"type:varchar(64)" json:"file_type,omitempty"`
	Keywords  []Keyword `gorm:"many2many:document_keywords" json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

type ChatSession struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64     `gorm:"index;not null" json:"user_id"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

type Consultation struct {
	ID            uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID     uint64       `gorm:"index;not null" json:"session_id"`
	SubcategoryID uint64       `gorm:"index;not null" json:"subcategory_id"`
	Subcategory   *Subcategory `gorm:"foreignKey:SubcategoryID" json:"subcategory,omitempty"`
	Question      string       `gorm:"type:text;not null" json:"question"`
	Embedding     *string      `gorm:"type:text" json:"-"`
	Response      *Response    `gorm:"foreignKey:ConsultationID" json:"response,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (Consultation) TableName() string { return "consultations" }

type Response struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConsultationID uint64    `gorm:"uniqueIndex;not null" json:"consultation_id"`
	AnswerText     string    `gorm:"type:text;not null" json:"answer_text"`
	SourceDocID    *uint64   `gorm:"index" json:"source_document_id,omitempty"`
	SourceDoc      *Document `gorm:"foreignKey:SourceDocID" json:"source_document,omitempty"`
	SourceURL      *string   `gorm:"type:varchar(512)" json:"source_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Response) TableName() string { return "responses" }

type Feedback struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ResponseID     uint64    `gorm:"index;not null" json:"response_id"`
	ConsultationID uint64    `gorm:"index;not null" json:"consultation_id"`
	Helpful        bool      `gorm:"not null" json:"helpful"`
	Score          *float64  `json:"score,omitempty"`
	Comment        *string   `gorm:"type:varchar(512)" json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "feedbacks" }

// PendingTopicOpen is the status a suggestion starts in; admins move it
// through arbitrary workflow states from there.
const PendingTopicOpen = "open"

type PendingTopic struct {
	ID             uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ConsultationID uint64        `gorm:"index;not null" json:"consultation_id"`
	Consultation   *Consultation `gorm:"foreignKey:ConsultationID" json:"consultation,omitempty"`
	SubcategoryID  uint64        `gorm:"index;not null" json:"subcategory_id"`
	Subcategory    *Subcategory  `gorm:"foreignKey:SubcategoryID" json:"subcategory,omitempty"`
	TopicText      string        `gorm:"type:varchar(512);not null" json:"topic_text"`
	Status         string        `gorm:"type:varchar(50);not null;default:open" json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (PendingTopic) TableName() string { return "pending_topics" }

type IngestStatus string

const (
	IngestQueued    IngestStatus = "queued"
	IngestRunning   IngestStatus = "running"
	IngestSucceeded IngestStatus = "succeeded"
	IngestFailed    IngestStatus = "failed"
)

// IngestJob tracks one asynchronous knowledge-document ingestion run.
type IngestJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	Title         string  `gorm:"type:varchar(255);not null"`
	Description   string  `gorm:"type:text"`
	Solution      *string `gorm:"type:text"`
	SubcategoryID uint64  `gorm:"index;not null"`
	KeywordsCSV   string  `gorm:"type:text"`
	FileURL       *string `gorm:"type:varchar(512)"`
	FilePath      *string `gorm:"type:varchar(512)"`
	FileType      *string `gorm:"type:varchar(64)"`

	Status IngestStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	DocumentsCreated *int `gorm:"type:int"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (IngestJob) TableName() string { return "ingest_jobs" }
