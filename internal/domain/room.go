package domain

// RoomID names a group of signaling endpoints allowed to exchange
// negotiation messages with one another.
type RoomID string

func (id RoomID) String() string { return string(id) }
