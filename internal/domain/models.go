package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// SlotCount is the number of sequential round-2 question slots.
const SlotCount = 6

// QuestionType classifies a round-2 slot.
type QuestionType string

const (
	QuestionAptitude QuestionType = "aptitude"
	QuestionDebug    QuestionType = "debug"
	QuestionTrace    QuestionType = "trace"
	QuestionProgram  QuestionType = "program"
)

// SlotTypes is the fixed round-2 flow: aptitude slots alternate with coding challenges.
var SlotTypes = [SlotCount]QuestionType{
	QuestionAptitude,
	QuestionDebug,
	QuestionAptitude,
	QuestionTrace,
	QuestionAptitude,
	QuestionProgram,
}

// MaxAptitudeAttempts caps retries on a single aptitude slot.
const MaxAptitudeAttempts = 2

// ChallengeTimeCaps bounds the client-reported elapsed seconds per challenge type.
// Times beyond the cap are clamped, not rejected.
var ChallengeTimeCaps = map[QuestionType]int64{
	QuestionDebug:   5 * 60,
	QuestionTrace:   15 * 60,
	QuestionProgram: 25 * 60,
}

// ChallengeSlot maps a challenge type to its slot index, or -1 if the type is
// not a coding challenge.
func ChallengeSlot(t QuestionType) int {
	for i, st := range SlotTypes {
		if st != QuestionAptitude && st == t {
			return i
		}
	}
	return -1
}

// AptitudeIndex maps a slot index to its position in the attempts array
// (aptitude slots are 0, 2, 4), or -1 for challenge slots.
func AptitudeIndex(slot int) int {
	if slot < 0 || slot >= SlotCount || SlotTypes[slot] != QuestionAptitude {
		return -1
	}
	return slot / 2
}

// Team is the durable record holding all per-team progression state.
// Every mutation goes through a compare-and-swap on Version.
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID           string `bun:"id,pk" json:"id"`
	TeamName     string `bun:"team_name,notnull,unique" json:"teamName"`
	Member1Name  string `bun:"member1_name,notnull" json:"member1Name"`
	Member1Email string `bun:"member1_email,notnull" json:"member1Email"`
	Member2Name  string `bun:"member2_name,notnull" json:"member2Name"`
	Member2Email string `bun:"member2_email,notnull" json:"member2Email"`
	LeaderName   string `bun:"leader_name,notnull" json:"leaderName"`
	LeaderPhone  string `bun:"leader_phone" json:"leaderPhone"`
	PasswordHash string `bun:"password_hash,notnull" json:"-"`

	CompetitionStatus Status `bun:"competition_status,notnull" json:"competitionStatus"`
	ResultsAnnounced  bool   `bun:"results_announced,notnull,default:false" json:"resultsAnnounced"`
	HasCompletedCycle bool   `bun:"has_completed_cycle,notnull,default:false" json:"hasCompletedCycle"`

	// Round-2 progression. Slot q1 is unlocked from creation; everything else
	// is earned by completing the predecessor.
	Unlocked         [SlotCount]bool `bun:"unlocked,type:jsonb" json:"unlockedQuestions"`
	Completed        [SlotCount]bool `bun:"completed,type:jsonb" json:"completedQuestions"`
	AptitudeAttempts [3]int          `bun:"aptitude_attempts,type:jsonb" json:"aptitudeAttempts"`
	Scores           [SlotCount]int  `bun:"scores,type:jsonb" json:"scores"`
	TotalScore       int             `bun:"total_score,notnull,default:0" json:"totalScore"`
	StartTime        *time.Time      `bun:"start_time" json:"startTime,omitempty"`
	EndTime          *time.Time      `bun:"end_time" json:"endTime,omitempty"`
	TotalTimeTaken   int64           `bun:"total_time_taken,notnull,default:0" json:"totalTimeTaken"`
	QuizCompleted    bool            `bun:"is_quiz_completed,notnull,default:false" json:"isQuizCompleted"`

	// Round-3 progression.
	Round3Completed   bool                  `bun:"round3_completed,notnull,default:false" json:"round3Completed"`
	Round3Score       int                   `bun:"round3_score,notnull,default:0" json:"round3Score"`
	Round3Time        int64                 `bun:"round3_time,notnull,default:0" json:"round3Time"`
	Round3OrderID     string                `bun:"round3_order_id" json:"round3QuestionOrder"`
	Round3OrderName   string                `bun:"round3_order_name" json:"round3QuestionOrderName"`
	Round3Results     []Round3BlockResult   `bun:"round3_results,type:jsonb" json:"round3QuestionResults"`
	Round3Scores      []Round3QuestionScore `bun:"round3_individual_scores,type:jsonb" json:"round3IndividualScores"`
	Round3SubmittedAt *time.Time            `bun:"round3_submitted_at" json:"round3SubmittedAt,omitempty"`

	Version   int64     `bun:"version,notnull,default:0" json:"-"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// CurrentSlot derives the active round-2 slot: the first unlocked-but-incomplete
// slot in flow order. Returns -1 once every slot is completed. The current slot
// is never stored; it is always recomputed from the persisted flags.
func (t *Team) CurrentSlot() int {
	for i := 0; i < SlotCount; i++ {
		if t.Unlocked[i] && !t.Completed[i] {
			return i
		}
	}
	return -1
}

// SumScores recomputes the round-2 aggregate from the per-slot scores.
func (t *Team) SumScores() int {
	total := 0
	for _, s := range t.Scores {
		total += s
	}
	return total
}

// AllCompleted reports whether every round-2 slot has been completed.
func (t *Team) AllCompleted() bool {
	for _, done := range t.Completed {
		if !done {
			return false
		}
	}
	return true
}

// ResetProgress restores every progression field and the competition status to
// creation defaults. Identity, credentials and creation timestamps are untouched.
func (t *Team) ResetProgress() {
	t.Unlocked = [SlotCount]bool{0: true}
	t.Completed = [SlotCount]bool{}
	t.AptitudeAttempts = [3]int{}
	t.Scores = [SlotCount]int{}
	t.TotalScore = 0
	t.StartTime = nil
	t.EndTime = nil
	t.TotalTimeTaken = 0
	t.QuizCompleted = false
	t.Round3Completed = false
	t.Round3Score = 0
	t.Round3Time = 0
	t.Round3OrderID = ""
	t.Round3OrderName = ""
	t.Round3Results = nil
	t.Round3Scores = nil
	t.Round3SubmittedAt = nil
	t.ResultsAnnounced = false
	t.HasCompletedCycle = false
	t.CompetitionStatus = StatusRegistered
}

// Round3BlockResult records the outcome of a single puzzle block.
type Round3BlockResult struct {
	QuestionIndex  int   `json:"questionIndex"`
	BlockIndex     int   `json:"blockIndex"`
	SelectedAnswer int   `json:"selectedAnswer"`
	IsCorrect      bool  `json:"isCorrect"`
	TimeTaken      int64 `json:"timeTaken"`
}

// Round3QuestionScore aggregates one round-3 question in presentation order.
type Round3QuestionScore struct {
	QuestionIndex int   `json:"questionIndex"`
	Score         int   `json:"score"`
	TimeTaken     int64 `json:"timeTaken"`
}

// Round3BlockAnswer is a single puzzle-block answer as submitted by a team.
// QuestionIndex refers to the team's assigned presentation order.
type Round3BlockAnswer struct {
	QuestionIndex  int   `json:"questionIndex"`
	BlockIndex     int   `json:"blockIndex"`
	SelectedAnswer int   `json:"selectedAnswer"`
	TimeTaken      int64 `json:"timeTaken"`
}

// Submission is one append-only entry in the submission log. Entries are
// created on every submit and autosave call and removed only by admin resets.
type Submission struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID            int64        `bun:"id,pk,autoincrement" json:"id"`
	TeamID        string       `bun:"team_id,notnull" json:"teamId"`
	Slot          int          `bun:"slot,notnull" json:"slot"`
	QuestionType  QuestionType `bun:"question_type,notnull" json:"questionType"`
	ChallengeType QuestionType `bun:"challenge_type" json:"challengeType,omitempty"`
	QuestionTitle string       `bun:"question_title" json:"questionTitle"`
	Snapshot      string       `bun:"snapshot,type:jsonb" json:"snapshot"`
	Answer        string       `bun:"answer" json:"answer"`
	TimeTaken     int64        `bun:"time_taken,notnull,default:0" json:"timeTaken"`
	AttemptNumber int          `bun:"attempt_number,notnull,default:1" json:"attemptNumber"`
	IsCorrect     bool         `bun:"is_correct,notnull,default:false" json:"isCorrect"`
	Score         int          `bun:"score,notnull,default:0" json:"score"`
	IsAutoSave    bool         `bun:"is_auto_save,notnull,default:false" json:"isAutoSave"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

// RoundCode is the per-round access code record.
type RoundCode struct {
	Round       int    `json:"round"`
	Code        string `json:"code"`
	Active      bool   `json:"active"`
	UsageCount  int64  `json:"usageCount"`
	Completions int64  `json:"completions"`
}
