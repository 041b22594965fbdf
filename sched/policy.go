package sched

// Policy selects how the scheduler chooses the next thread to run.
type Policy int

const (
	// RoundRobin keeps every runnable thread on level 0 and always
	// selects the highest-priority thread there, ties broken by queue
	// position.
	RoundRobin Policy = 0
	// MultiLevelFeedback spreads threads across Levels run-queue
	// levels; selection scans from level 0 upward and takes the front
	// of the first non-empty level.
	MultiLevelFeedback Policy = 1
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "round-robin"
	case MultiLevelFeedback:
		return "multi-level-feedback"
	default:
		return "unknown-policy"
	}
}

// targetLevel returns the run-queue level t should enter under the given
// policy, given its own stored level. Under RR every thread runs at level
// 0. Under MLF a thread enters the level it carries, except the idle
// thread, which is pinned to the lowest-priority level.
func targetLevel(policy Policy, t *Thread) int {
	if policy == RoundRobin {
		return 0
	}
	if t.isIdle {
		return Levels - 1
	}
	return t.level
}
