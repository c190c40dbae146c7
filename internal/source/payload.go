package source

import "time"

// TeamScore is one side of a game.
type TeamScore struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Score        int    `json:"score"`
	Winner       bool   `json:"winner"`
}

// GamePayload answers a sports question.
type GamePayload struct {
	GameID    string    `json:"gameId"`
	Name      string    `json:"name,omitempty"`
	League    string    `json:"league"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Completed bool      `json:"completed"`
	Home      TeamScore `json:"home"`
	Away      TeamScore `json:"away"`
	Winner    string    `json:"winner,omitempty"`

	// Subject is the queried team as named by the provider.
	Subject    string `json:"subject,omitempty"`
	SubjectWon *bool  `json:"subjectWon,omitempty"`

	// OpponentCorroborated is set when the question named an opponent and the
	// matched game's other side is that opponent.
	OpponentCorroborated bool   `json:"opponentCorroborated"`
	Summary              string `json:"summary"`
}

// RedditPost is one listing entry.
type RedditPost struct {
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	Permalink string    `json:"permalink"`
	URL       string    `json:"url,omitempty"`
	Created   time.Time `json:"created"`
}

// RedditPayload answers a subreddit activity question.
type RedditPayload struct {
	Subreddit string       `json:"subreddit"`
	Intent    string       `json:"intent"`
	Keyword   string       `json:"keyword,omitempty"`
	Count     int          `json:"count"`
	Posts     []RedditPost `json:"posts"`
	Summary   string       `json:"summary"`
}
