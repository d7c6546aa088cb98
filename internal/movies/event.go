package movies

// Event types pushed to subscribers after a successful mutation.
const (
	EventCreated = "movie_created"
	EventUpdated = "movie_updated"
	EventDeleted = "movie_deleted"
)

type Event struct {
	Type string `json:"type"`
	Data Movie  `json:"data"`
}
