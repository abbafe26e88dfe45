package models

// Post represents a Reddit submission returned by a search query
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	SelfText    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
}

// Comment represents a single Reddit comment body
type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
}
