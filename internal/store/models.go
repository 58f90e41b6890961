package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Series struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SeriesMember struct {
	SeriesID  string
	UserID    string
	Role      string
	CreatedAt time.Time
	// Joined fields for API responses
	DisplayName string
	Email       string
}

type Board struct {
	ID             string
	SeriesID       string
	Name           string
	Status         string
	CurrentSceneID *string
	// Max votes each user may cast on this board
	VotingAllocation int
	TimerStart       *time.Time
	TimerSeconds     int
	BlameFree        bool
	// Presentation state driven by the facilitator in present mode
	SelectedCardID *string
	NotesLocked    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Scene struct {
	ID      string
	BoardID string
	Title   string
	Mode    string
	Seq     int
	Flags   []string
}

type Column struct {
	ID         string
	BoardID    string
	Title      string
	Seq        int
	Appearance string
	CreatedAt  time.Time
}

// SceneColumnState records per-scene column visibility; columns without a
// row default to visible.
type SceneColumnState struct {
	SceneID  string
	ColumnID string
	Visible  bool
}

type Card struct {
	ID          string
	BoardID     string
	ColumnID    string
	UserID      string
	Content     string
	GroupID     *string
	IsGroupLead bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Joined fields
	AuthorName string
	VoteCount  int
}

type Vote struct {
	ID        string
	CardID    string
	UserID    string
	CreatedAt time.Time
}

// VoteAllocation reports a user's voting budget on a board.
type VoteAllocation struct {
	CurrentVotes   int
	RemainingVotes int
	CanVote        bool
}

type Comment struct {
	ID          string
	CardID      string
	UserID      string
	Content     string
	IsReaction  bool
	IsAgreement bool
	CreatedAt   time.Time
	// Joined fields
	AuthorName string
}

// Agreement is the unified read model: free-standing board commitments and
// promoted comments both surface here.
type Agreement struct {
	ID              string
	BoardID         string
	Content         string
	UserID          string
	SourceCommentID *string
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Joined fields
	AuthorName string
}

type HealthQuestion struct {
	ID        string
	BoardID   string
	Question  string
	Seq       int
	CreatedAt time.Time
}

type HealthResponse struct {
	ID         string
	QuestionID string
	UserID     string
	Rating     int
	CreatedAt  time.Time
}

type HealthSummary struct {
	QuestionID    string
	Question      string
	ResponseCount int
	AverageRating float64
}
