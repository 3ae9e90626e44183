package coordinator

import "github.com/lumilive/seminar/internal/core"

// CanModerate decides whether an actor may apply a moderation action to
// a target, given both roles. This is the single authorization point
// for host actions; handlers never compare roles themselves.
//
// host    may act on anyone.
// co-host may act on users only, and may never promote, demote or kick
//         another moderator.
// user    may not moderate at all.
func CanModerate(actor, target core.Role, action core.HostAction) bool {
	if !actor.IsModerator() {
		return false
	}
	if actor == core.RoleCoHost && target == core.RoleHost {
		return false
	}

	switch action {
	case core.ActionKick:
		return actor == core.RoleHost || target == core.RoleUser
	case core.ActionPromoteToCoHost, core.ActionDemoteToUser:
		return actor == core.RoleHost
	case core.ActionMute, core.ActionLowerHand, core.ActionGrantAudio, core.ActionRevokeAudio:
		return true
	default:
		return false
	}
}

// CanBroadcast reports whether the role may post chat broadcasts or
// change the stream source.
func CanBroadcast(role core.Role) bool {
	return role.IsModerator()
}

// CanCreatePoll reports whether the role may open a poll.
func CanCreatePoll(role core.Role) bool {
	return role.IsModerator()
}
