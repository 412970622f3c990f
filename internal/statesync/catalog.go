package statesync

import "payquest/internal/core/domain"

// Achievement is a static catalog entry. Predicate must be a pure function of stats.
type Achievement struct {
	ID        string
	Title     string
	XP        int64
	Predicate func(domain.Stats) bool
}

func counterAtLeast(name string, n int64) func(domain.Stats) bool {
	return func(s domain.Stats) bool { return s.Get(name) >= n }
}

// DefaultCatalog returns the built-in achievements in evaluation order.
func DefaultCatalog() []Achievement {
	return []Achievement{
		{ID: "first_transaction", Title: "First Steps", XP: 50, Predicate: counterAtLeast(domain.StatTotalTransactions, 1)},
		{ID: "transaction_pro", Title: "Transaction Pro", XP: 150, Predicate: counterAtLeast(domain.StatTotalTransactions, 10)},
		{ID: "scam_spotter", Title: "Scam Spotter", XP: 100, Predicate: counterAtLeast(domain.StatScamsIdentified, 1)},
		{ID: "scam_buster", Title: "Scam Buster", XP: 250, Predicate: counterAtLeast(domain.StatScamsIdentified, 5)},
		{ID: "first_scan", Title: "QR Explorer", XP: 50, Predicate: counterAtLeast(domain.StatQRScans, 1)},
		{ID: "qr_master", Title: "QR Master", XP: 150, Predicate: counterAtLeast(domain.StatQRScans, 10)},
		{ID: "bill_master", Title: "Bill Master", XP: 75, Predicate: counterAtLeast(domain.StatBillsPaid, 1)},
		{ID: "loan_planner", Title: "Loan Planner", XP: 100, Predicate: counterAtLeast(domain.StatLoanCalculations, 3)},
		{ID: "voucher_sender", Title: "Generous Giver", XP: 75, Predicate: counterAtLeast(domain.StatVouchersSent, 1)},
		{ID: "eager_learner", Title: "Eager Learner", XP: 150, Predicate: counterAtLeast(domain.StatLessonsCompleted, 5)},
		{ID: "money_master", Title: "Money Master", XP: 200, Predicate: func(s domain.Stats) bool { return s.TotalXP >= 1000 }},
	}
}

// evaluateUnlocks unlocks every achievement whose predicate holds, adding
// its XP once. Runs to a fixed point since unlock XP can satisfy XP-based
// predicates. Returns the achievements unlocked by this call.
func evaluateUnlocks(catalog []Achievement, st *domain.AchievementState) []Achievement {
	var unlocked []Achievement
	for {
		changed := false
		for _, a := range catalog {
			if st.IsUnlocked(a.ID) || !a.Predicate(st.Stats) {
				continue
			}
			st.Unlocked = append(st.Unlocked, a.ID)
			st.Stats.TotalXP += a.XP
			unlocked = append(unlocked, a)
			changed = true
		}
		if !changed {
			return unlocked
		}
	}
}
