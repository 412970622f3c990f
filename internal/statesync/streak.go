package statesync

import (
	"time"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
)

const (
	dateLayout      = "2006-01-02"
	rewardEveryDays = 7
)

// RewardTemplate is one row of the streak reward table.
type RewardTemplate struct {
	Kind    domain.RewardKind
	Amount  int64
	Message string
}

// DefaultRewardTable holds three XP tiers and three money tiers.
var DefaultRewardTable = []RewardTemplate{
	{Kind: domain.RewardKindXP, Amount: 50, Message: "Bonus 50 XP for your weekly streak!"},
	{Kind: domain.RewardKindXP, Amount: 100, Message: "Bonus 100 XP for your weekly streak!"},
	{Kind: domain.RewardKindXP, Amount: 200, Message: "Jackpot! 200 XP for your weekly streak!"},
	{Kind: domain.RewardKindMoney, Amount: 500, Message: "You earned ₹500 for your weekly streak!"},
	{Kind: domain.RewardKindMoney, Amount: 1000, Message: "You earned ₹1000 for your weekly streak!"},
	{Kind: domain.RewardKindMoney, Amount: 2000, Message: "Jackpot! ₹2000 for your weekly streak!"},
}

// EvaluateStreak applies one visit on day today to s. pick(n) returns a
// uniform index in [0, n) and is only called when a reward is generated.
// Returns the new streak and whether it changed.
func EvaluateStreak(s domain.Streak, today time.Time, table []RewardTemplate, pick func(int) int) (domain.Streak, bool) {
	todayStr := today.Format(dateLayout)
	if s.LastVisitDate == todayStr {
		return s, false
	}

	if last, err := time.Parse(dateLayout, s.LastVisitDate); err == nil && daysBetween(last, today) == 1 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastVisitDate = todayStr

	if s.CurrentStreak%rewardEveryDays == 0 && len(table) > 0 {
		tpl := table[pick(len(table))]
		s.PendingReward = &domain.StreakReward{
			ID:        uuid.New(),
			Kind:      tpl.Kind,
			Amount:    tpl.Amount,
			Message:   tpl.Message,
			StreakDay: s.CurrentStreak,
		}
	}
	return s, true
}

// daysBetween counts calendar days from a to b using their wall-clock dates.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
