package domain

import (
	"time"

	"github.com/google/uuid"
)

// Named stat counters.
const (
	StatTotalTransactions = "totalTransactions"
	StatScamsIdentified   = "scamsIdentified"
	StatQRScans           = "qrScans"
	StatBillsPaid         = "billsPaid"
	StatLoanCalculations  = "loanCalculations"
	StatVouchersSent      = "vouchersSent"
	StatLessonsCompleted  = "lessonsCompleted"
)

// Stats holds gamification counters plus cumulative XP.
type Stats struct {
	Counters map[string]int64 `json:"counters"`
	TotalXP  int64            `json:"total_xp"`
}

// NewStats returns zeroed stats.
func NewStats() Stats {
	return Stats{Counters: make(map[string]int64)}
}

// Get returns the value of a named counter (0 when absent).
func (s Stats) Get(name string) int64 {
	return s.Counters[name]
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	out := Stats{Counters: make(map[string]int64, len(s.Counters)), TotalXP: s.TotalXP}
	for k, v := range s.Counters {
		out.Counters[k] = v
	}
	return out
}

// RewardKind is the payout type of a streak reward.
type RewardKind string

const (
	RewardKindXP    RewardKind = "xp"
	RewardKindMoney RewardKind = "money"
)

// StreakReward is granted when the streak reaches a multiple of seven days.
type StreakReward struct {
	ID        uuid.UUID  `json:"id"`
	Kind      RewardKind `json:"kind"`
	Amount    int64      `json:"amount"`
	Message   string     `json:"message"`
	StreakDay int        `json:"streak_day"`
}

// Streak tracks consecutive days of use. LastVisitDate is YYYY-MM-DD.
type Streak struct {
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`
	LastVisitDate string        `json:"last_visit_date"`
	PendingReward *StreakReward `json:"pending_reward,omitempty"`
}

// AchievementState is the client-side gamification state of a user.
type AchievementState struct {
	Stats    Stats    `json:"stats"`
	Unlocked []string `json:"unlocked"`
	Streak   Streak   `json:"streak"`
}

// IsUnlocked reports whether the achievement id has been unlocked.
func (a AchievementState) IsUnlocked(id string) bool {
	for _, u := range a.Unlocked {
		if u == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of a.
func (a AchievementState) Clone() AchievementState {
	out := AchievementState{
		Stats:    a.Stats.Clone(),
		Unlocked: append([]string(nil), a.Unlocked...),
		Streak:   a.Streak,
	}
	if a.Streak.PendingReward != nil {
		r := *a.Streak.PendingReward
		out.Streak.PendingReward = &r
	}
	return out
}

// AchievementRecord is the authoritative stats row held by the backend.
type AchievementRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	Stats     Stats     `json:"stats"`
	Unlocked  []string  `json:"unlocked"`
	UpdatedAt time.Time `json:"updated_at"`
}
