package core

// HostAction is a moderation action issued against another participant.
type HostAction string

const (
	ActionMute            HostAction = "mute"
	ActionKick            HostAction = "kick"
	ActionLowerHand       HostAction = "lower-hand"
	ActionGrantAudio      HostAction = "grant-audio"
	ActionRevokeAudio     HostAction = "revoke-audio"
	ActionPromoteToCoHost HostAction = "promote-to-cohost"
	ActionDemoteToUser    HostAction = "demote-to-user"
)
