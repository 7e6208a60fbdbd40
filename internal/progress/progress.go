package progress

// GoalState is the coarse lifecycle position of a goal. There is no terminal
// state: a completed goal returns to Active when a milestone is un-completed.
type GoalState string

const (
	StateActive    GoalState = "active"
	StateCompleted GoalState = "completed"
)

// StateFor maps a progress percentage to its goal state.
func StateFor(progress int) GoalState {
	if progress == 100 {
		return StateCompleted
	}
	return StateActive
}

// ComputeGoalProgress returns round(100 * completed / total), rounding halves
// up. A goal without milestones has progress 0.
func ComputeGoalProgress(milestones []Milestone) int {
	total := len(milestones)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, m := range milestones {
		if m.Completed {
			completed++
		}
	}
	return (200*completed + total) / (2 * total)
}

// IsNewlyCompleted reports whether a change from previous to next crosses
// into 100%. It must be evaluated against the state read before the mutation
// is committed, otherwise a reload would look like a fresh completion.
func IsNewlyCompleted(previous, next int) bool {
	return previous < 100 && next == 100
}
