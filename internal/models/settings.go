package models

// SidebarSettings are the embedder-provided settings the sidebar store is
// initialized from.
type SidebarSettings struct {
	// Annotations is the ID of an annotation to select on startup.
	Annotations string `json:"annotations,omitempty"`

	// Query is an initial filter query.
	Query string `json:"query,omitempty"`

	Focus FocusConfig `json:"focus"`

	// Route is the view the sidebar starts in.
	Route string `json:"route,omitempty"`
}

// FocusConfig selects a user whose annotations are shown by default.
type FocusConfig struct {
	User *FocusUser `json:"user,omitempty"`
}

type FocusUser struct {
	Username    string `json:"username,omitempty"`
	UserID      string `json:"userid,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}
