package backend

import (
	"context"
	"time"
)

// Account is a registered member
type Account struct {
	ID                 int64
	FullName           string
	Email              string
	Username           string
	PasswordHash       string
	Gender             string
	ProfilePicturePath string
	CreatedAt          time.Time
}

// NewAccount holds the fields needed to register a member
type NewAccount struct {
	FullName string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=32,username"`
	Password string `validate:"required,min=6"`
	Gender   string `validate:"oneof=Male Female"`
}

// Scholar is an account that answers fatwa questions
type Scholar struct {
	ID                 int64
	UserID             int64
	FullName           string
	Email              string
	Username           string
	PasswordHash       string
	Specialization     string
	Qualifications     string
	Bio                string
	Gender             string
	IsVerified         bool
	IsOnline           bool
	LastSeen           *time.Time
	ProfilePicturePath string
	CreatedAt          time.Time
}

// NewScholar holds the fields needed to register a scholar
type NewScholar struct {
	NewAccount
	Specialization string `validate:"required,max=100"`
	Qualifications string `validate:"max=500"`
	Bio            string `validate:"max=2000"`
}

// PrayerLogEntry records the five daily prayers for one account and date
type PrayerLogEntry struct {
	ID      int64
	UserID  int64  `validate:"required"`
	Date    string `validate:"required,isodate"`
	Fajr    bool
	Dhuhr   bool
	Asr     bool
	Maghrib bool
	Isha    bool
	Notes   string `validate:"max=1000"`
}

// Completed returns how many of the five prayers were prayed
func (p PrayerLogEntry) Completed() int {
	n := 0
	for _, ok := range []bool{p.Fajr, p.Dhuhr, p.Asr, p.Maghrib, p.Isha} {
		if ok {
			n++
		}
	}
	return n
}

// QuranLogEntry is one Quran reading session
type QuranLogEntry struct {
	ID              int64
	UserID          int64  `validate:"required"`
	Date            string `validate:"required,isodate"`
	SurahNumber     int    `validate:"min=1,max=114"`
	AyahFrom        int    `validate:"min=1"`
	AyahTo          int    `validate:"gtefield=AyahFrom"`
	DurationMinutes int    `validate:"min=0"`
	Notes           string `validate:"max=1000"`
	CreatedAt       time.Time
}

// DhikrLogEntry is one saved tasbih session
type DhikrLogEntry struct {
	ID         int64
	UserID     int64  `validate:"required"`
	Date       string `validate:"required,isodate"`
	DhikrName  string `validate:"required,max=200"`
	Count      int    `validate:"min=1"`
	Cycles     int    `validate:"min=0"`
	TotalCount int    `validate:"min=0"`
	Notes      string `validate:"max=1000"`
	CreatedAt  time.Time
}

// FastingLogEntry is one Ramadan day for an account
type FastingLogEntry struct {
	ID         int64
	UserID     int64 `validate:"required"`
	Year       int   `validate:"min=1900,max=3000"`
	DayNumber  int   `validate:"min=1,max=366"`
	Fasted     bool
	Notes      string `validate:"max=1000"`
	GoodDeeds  string `validate:"max=2000"`
	QuranPages int    `validate:"min=0"`
	CreatedAt  time.Time
}

// ZikrPeriod is the time of day a zikr set belongs to
type ZikrPeriod string

const (
	ZikrMorning ZikrPeriod = "morning"
	ZikrEvening ZikrPeriod = "evening"
)

// ZikrLogEntry records completion of the morning or evening adhkar
type ZikrLogEntry struct {
	ID        int64
	UserID    int64      `validate:"required"`
	Date      string     `validate:"required,isodate"`
	Period    ZikrPeriod `validate:"oneof=morning evening"`
	Completed bool
	Notes     string `validate:"max=1000"`
}

// Priority of a fatwa question
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// QuestionStatus is the lifecycle state of a fatwa question
type QuestionStatus string

const (
	StatusPending  QuestionStatus = "pending"
	StatusAnswered QuestionStatus = "answered"
	StatusRejected QuestionStatus = "rejected"
)

// FatwaQuestion is a question addressed to one scholar
type FatwaQuestion struct {
	ID          int64
	UserID      int64    `validate:"required"`
	ScholarID   int64    `validate:"required"`
	Title       string   `validate:"required,max=200"`
	Text        string   `validate:"required,max=5000"`
	Category    string   `validate:"max=100"`
	Priority    Priority `validate:"oneof=low normal high"`
	Status      QuestionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserName    string
	ScholarName string
}

// FatwaAnswer is the scholar's reply to a question
type FatwaAnswer struct {
	ID          int64
	QuestionID  int64  `validate:"required"`
	ScholarID   int64  `validate:"required"`
	Text        string `validate:"required,max=10000"`
	References  string `validate:"max=2000"`
	IsPublic    bool
	CreatedAt   time.Time
	ScholarName string
}

// Community is one of the two fixed community channels
type Community string

const (
	CommunityMale   Community = "male"
	CommunityFemale Community = "female"
)

// CommunityMessage is a message posted to a community channel
type CommunityMessage struct {
	ID        int64
	UserID    int64     `validate:"required"`
	Text      string    `validate:"required,max=2000"`
	Community Community `validate:"oneof=male female"`
	CreatedAt time.Time
	UserName  string
}

// PersonalMessage is a direct message between two accounts
type PersonalMessage struct {
	ID         int64
	SenderID   int64  `validate:"required"`
	ReceiverID int64  `validate:"required,nefield=SenderID"`
	Text       string `validate:"required,max=2000"`
	IsRead     bool
	CreatedAt  time.Time
	SenderName string
}

// Store is the synchronous persistence contract. Lookups that find nothing
// return ErrNotFound; uniqueness violations return ErrDuplicate.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a *Account) (int64, error)
	AccountExists(ctx context.Context, username, email string) (bool, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListAccountsByGender(ctx context.Context, gender string) ([]Account, error)
	ListMessagingContacts(ctx context.Context, excludeID int64, gender string) ([]Account, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) error
	UpdateProfilePicture(ctx context.Context, username, path string) error

	// Scholars
	CreateScholar(ctx context.Context, s *Scholar) (int64, error)
	ScholarExists(ctx context.Context, username, email string) (bool, error)
	GetScholarByUsername(ctx context.Context, username string) (*Scholar, error)
	GetScholarByID(ctx context.Context, id int64) (*Scholar, error)
	ListScholars(ctx context.Context) ([]Scholar, error)
	SetScholarOnline(ctx context.Context, id int64, online bool, at time.Time) error
	UpdateScholarPasswordHash(ctx context.Context, username, hash string) error

	// Trackers
	UpsertPrayerLog(ctx context.Context, e *PrayerLogEntry) error
	GetPrayerLog(ctx context.Context, userID int64, date string) (*PrayerLogEntry, error)
	ListPrayerLogs(ctx context.Context, userID int64, from, to string) ([]PrayerLogEntry, error)
	AddQuranLog(ctx context.Context, e *QuranLogEntry) (int64, error)
	ListQuranLogs(ctx context.Context, userID int64) ([]QuranLogEntry, error)
	AddDhikrLog(ctx context.Context, e *DhikrLogEntry) (int64, error)
	ListDhikrLogs(ctx context.Context, userID int64) ([]DhikrLogEntry, error)
	SaveFastingLog(ctx context.Context, e *FastingLogEntry) error
	ListFastingLogs(ctx context.Context, userID int64, year int) ([]FastingLogEntry, error)
	UpsertZikrLog(ctx context.Context, e *ZikrLogEntry) error
	ListZikrLogs(ctx context.Context, userID int64, year int) ([]ZikrLogEntry, error)

	// Fatwa
	CreateQuestion(ctx context.Context, q *FatwaQuestion) (int64, error)
	GetQuestion(ctx context.Context, id int64) (*FatwaQuestion, error)
	ListQuestionsForScholar(ctx context.Context, scholarID int64) ([]FatwaQuestion, error)
	ListQuestionsForUser(ctx context.Context, userID int64) ([]FatwaQuestion, error)
	AnswerQuestion(ctx context.Context, a *FatwaAnswer) (int64, error)
	GetAnswer(ctx context.Context, questionID int64) (*FatwaAnswer, error)
	RejectQuestion(ctx context.Context, questionID, scholarID int64) error

	// Messaging
	PostCommunityMessage(ctx context.Context, m *CommunityMessage) (int64, error)
	ListCommunityMessages(ctx context.Context, community Community, limit int) ([]CommunityMessage, error)
	SendPersonalMessage(ctx context.Context, m *PersonalMessage) (int64, error)
	ListConversation(ctx context.Context, a, b int64) ([]PersonalMessage, error)
	MarkMessageRead(ctx context.Context, messageID, receiverID int64) error
	UnreadCount(ctx context.Context, userID int64) (int, error)
	SeedCommunities(ctx context.Context, welcome map[Community][]string) (int, error)
}
