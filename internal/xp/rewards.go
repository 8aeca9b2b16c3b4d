// Package xp keeps the experience-point ledger, levels and the leaderboard.
package xp

// Reason identifies why XP was credited
type Reason string

const (
	ReasonCreateSession Reason = "create_session"
	ReasonAttendSession Reason = "attend_session"
	ReasonCreateGroup   Reason = "create_group"
	ReasonJoinGroup     Reason = "join_group"
)

// PointsPerLevel is the XP needed to advance one level.
const PointsPerLevel = 100

var rewards = map[Reason]int{
	ReasonCreateSession: 25,
	ReasonAttendSession: 15,
	ReasonCreateGroup:   50,
	ReasonJoinGroup:     10,
}

// RewardFor returns the XP credited for reason, or 0 for unknown reasons.
func RewardFor(reason Reason) int {
	return rewards[reason]
}

// LevelFor maps total XP to a level, starting at 1.
func LevelFor(total int) int {
	if total < 0 {
		total = 0
	}
	return total/PointsPerLevel + 1
}
