package session

// User is the resolved identity behind the current access token.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
}

// State is the session snapshot handed to subscribers. Token and User are
// independent: a token without a user is either in flight or degraded, and
// LoggedIn is false until both are present.
type State struct {
	Token     string `json:"token,omitempty"`
	User      *User  `json:"user,omitempty"`
	AccountID int64  `json:"account_id,omitempty"` // active billing scope, 0 when none
	Loading   bool   `json:"loading"`
	LoggedIn  bool   `json:"logged_in"` // derived from Token and User, never set directly
}

// clone returns a deep copy so subscribers can never mutate live state.
func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
