package dispatcher

// Message is an inbound chat message. Private is true for direct messages,
// where ChannelID is the private channel. FromSelf is true when the platform
// identifies the author as the bot's own account.
type Message struct {
	AuthorID  string
	ChannelID string
	Content   string
	Private   bool
	FromSelf  bool
}

// VoiceStateChange reports a member's voice channel before and after an
// update. An empty id means no channel.
type VoiceStateChange struct {
	UserID       string
	OldChannelID string
	NewChannelID string
}
