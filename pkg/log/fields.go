package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldEndpoint  = "endpoint"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"

	// Actor
	FieldUserID      = "user_id"
	FieldRecipientID = "recipient_id"

	// Chat
	FieldRoomID    = "room_id"
	FieldMessageID = "message_id"
	FieldEvent     = "event"
	FieldState     = "state"
	FieldConnID    = "conn_id"

	FieldComponent = "component"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
