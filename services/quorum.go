package services

import "tablematch_server/models"

// EvaluateQuorum derives a venue's match status from its own tally.
//
// ALL_MUST_AGREE matches when every active member said yes and is partial
// from two yeses. THRESHOLD needs the explicit threshold, or half the active
// members rounded up with a floor of 2, before anything counts; past it the
// venue is a match only once every active member agrees.
func EvaluateQuorum(yesCount, noCount, activeMembers int, session models.Session) models.MatchStatus {
	if session.SwipeMode == models.SwipeModeThreshold {
		threshold := defaultThreshold(activeMembers)
		if session.AgreeThreshold != nil {
			threshold = *session.AgreeThreshold
		}
		switch {
		case yesCount < threshold:
			return models.MatchStatusNone
		case yesCount == activeMembers:
			return models.MatchStatusMatch
		default:
			return models.MatchStatusPartial
		}
	}

	switch {
	case yesCount > 0 && yesCount == activeMembers:
		return models.MatchStatusMatch
	case yesCount >= 2:
		return models.MatchStatusPartial
	default:
		return models.MatchStatusNone
	}
}

func defaultThreshold(activeMembers int) int {
	half := (activeMembers + 1) / 2
	if half < 2 {
		return 2
	}
	return half
}
