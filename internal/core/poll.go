package core

// PollOption is a single poll choice with its running vote count.
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is the single active poll of a room. Vote counts mutate only
// while the poll is active. The live voting path keeps no per-voter
// record, so repeated votes from one participant are counted.
type Poll struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	IsActive bool         `json:"isActive"`
	Duration int          `json:"duration"`
	TimeLeft int          `json:"timeLeft"`
}
