package room

// Player is a room member's authoritative record. It is owned exclusively by
// the room Session and only touched under its lock. Players are never
// deleted: disconnects flip Online to false so a returning player keeps
// their score.
type Player struct {
	// Username is the room-unique, case-sensitive display name.
	Username string
	// Score is the accumulated score; it never decreases.
	Score int
	// Online reports whether a connection currently claims this player.
	Online bool
	// SessionToken is an opaque identifier regenerated on each join or
	// rejoin. It correlates a connection to a player; it is not a credential.
	SessionToken string
}

// PlayerInfo is the roster snapshot entry broadcast to the room.
type PlayerInfo struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}
