package approval

// Terminal reports whether no further transition is permitted from status.
func Terminal(status Status) bool {
	switch status {
	case StatusAutoApproved, StatusManuallyApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the edge from -> to exists in the lifecycle.
// The only legal edges run from PENDING into a terminal status.
func CanTransition(from Status, to Status) bool {
	return from == StatusPending && Terminal(to)
}

// ActionForStatus maps a terminal status to the audit action that records it.
// Both approval paths share the APPROVED action; the actor distinguishes them
// (nil actor means the rule engine decided).
func ActionForStatus(status Status) (ActionType, bool) {
	switch status {
	case StatusAutoApproved, StatusManuallyApproved:
		return ActionApproved, true
	case StatusRejected:
		return ActionRejected, true
	case StatusCancelled:
		return ActionCancelled, true
	case StatusExpired:
		return ActionExpired, true
	}
	return "", false
}
