package models

// Message types exchanged over the real-time websocket.
const (
	MessageAnnotationNotification = "annotation-notification"
	MessageSessionChange          = "session-change"
	MessageWhoYouAre              = "whoyouare"
	MessageWhoAmI                 = "whoami"
	MessageClientID               = "client_id"
)

// Notification actions carried by annotation notifications.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionPast   = "past"
	ActionDelete = "delete"
)

// Notification is a message pushed from the server to clients.
type Notification struct {
	Type string `json:"type"`

	// Payload is set on annotation notifications. Delete notifications
	// carry ID-only annotations.
	Payload []Annotation        `json:"payload,omitempty"`
	Options NotificationOptions `json:"options,omitempty"`

	// Model is the new profile on session changes.
	Model *Profile `json:"model,omitempty"`

	// UserID is the authenticated user on whoyouare replies.
	UserID string `json:"userid,omitempty"`

	// SourceClientID is the client whose change caused the notification.
	// Relays use it to skip echoing a change back to its author.
	SourceClientID string `json:"-"`
}

type NotificationOptions struct {
	Action string `json:"action,omitempty"`
}

// ClientMessage is a message sent from a client to the server.
type ClientMessage struct {
	// MessageType is set on configuration messages such as client_id.
	MessageType string `json:"messageType,omitempty"`
	Value       string `json:"value,omitempty"`

	// Type and ID are set on requests such as whoami.
	Type string `json:"type,omitempty"`
	ID   int    `json:"id,omitempty"`
}
