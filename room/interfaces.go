package room

// Broadcaster delivers encoded messages to connections.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	Broadcast(connIDs []string, msgID uint16, data []byte) error
	SendTo(connID string, msgID uint16, data []byte) error
}

// Dice is the source of randomness for rolls. IntN returns a value in [0, n).
type Dice interface {
	IntN(n int) int
}
