package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Room actors
	FieldRoomID       = "room_id"
	FieldRoomCode     = "room_code"
	FieldUserID       = "user_id"
	FieldChatID       = "chat_id"
	FieldConnectionID = "connection_id"
	FieldEvent        = "event"

	FieldService = "service"
)
