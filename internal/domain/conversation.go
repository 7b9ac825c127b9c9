package domain

// Turn is one entry of a simulator conversation. Turns are append-only.
type Turn struct {
	ID           TurnID
	SessionID    SessionID
	Role         Role
	Text         string
	ProductCards []Product
	CreatedAt    Timestamp
}

// Session is one chat simulator run bound to a token's profile snapshot.
type Session struct {
	ID        SessionID
	Token     Token
	Language  Language
	Profile   *AgentProfile
	CreatedAt Timestamp
	UpdatedAt Timestamp
	Closed    bool
}

// ChatReply is the resolver's output for one turn.
type ChatReply struct {
	Text         string    `json:"text"`
	ProductCards []Product `json:"productCards,omitempty"`
}
