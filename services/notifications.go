package services

// Notifier pushes server-originated events to a user's channel.
type Notifier interface {
	EmitToUser(userID, event string, data interface{})
}

// RoomEmitter broadcasts to everyone following a room.
type RoomEmitter interface {
	EmitToRoom(roomID, event string, data interface{})
}
