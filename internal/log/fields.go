package log

// Structured field names shared across packages.
const (
	FieldService    = "service"
	FieldRoomID     = "room_id"
	FieldConnID     = "conn_id"
	FieldNickname   = "nickname"
	FieldRemoteAddr = "remote_addr"
	FieldEvent      = "event"
	FieldCount      = "count"
)
