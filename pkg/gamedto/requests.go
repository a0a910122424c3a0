package gamedto

// MoveRequest carries a submission. Type is empty or "player" for athletes
// and number, team or college for attributes.
type MoveRequest struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

type DailyPlayRequest struct {
	Submissions []MoveRequest `json:"submissions"`
}

// Identity is read from the X-User-* headers set by the identity provider.
type Identity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Persistent bool   `json:"persistent"`
}
