package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StartSessionRequest is the request body for starting a session.
// Owner is optional; it defaults to the caller's resolved identity.
type StartSessionRequest struct {
	PuzzleRef string `json:"puzzle_ref"`
	Owner     string `json:"owner,omitempty"`
}

// CompleteSessionRequest is the request body for completing a session
type CompleteSessionRequest struct {
	ID string `json:"id"`
}
