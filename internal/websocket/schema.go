package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestPayload is a client message on a roster stream. Only keepalive
// pings are meaningful; anything else is ignored.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventRoster Event = "roster"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// RosterUpdate is pushed to an instructor whenever the watched class's
// roster changes.
type RosterUpdate struct {
	Event        Event  `json:"event"`
	CourseNumber string `json:"course_number"`
	Action       string `json:"action"` // "enroll", "drop" or "delete"
	StudentID    int    `json:"student_id,omitempty"`
	StudentName  string `json:"student_name,omitempty"`
	SeatsLeft    int    `json:"seats_left"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
