package models

// Annotation is a piece of user-authored content attached to a document
// location, as returned by the annotation API.
//
// Fields prefixed with "$" in JSON are client-only. They are derived when
// the annotation enters the sidebar and are never sent back to the API.
type Annotation struct {
	// ID is assigned by the service once the annotation is saved.
	ID string `json:"id,omitempty"`

	Created     string      `json:"created,omitempty"`
	Updated     string      `json:"updated,omitempty"`
	User        string      `json:"user,omitempty"`
	UserInfo    *UserInfo   `json:"user_info,omitempty"`
	URI         string      `json:"uri,omitempty"`
	Group       string      `json:"group,omitempty"`
	Text        string      `json:"text"`
	Tags        []string    `json:"tags"`
	Target      []Target    `json:"target,omitempty"`
	References  []string    `json:"references,omitempty"`
	Permissions Permissions `json:"permissions"`
	Document    Document    `json:"document"`
	Links       Links       `json:"links"`
	Mentions    []Mention   `json:"mentions,omitempty"`

	Hidden     bool        `json:"hidden,omitempty"`
	Flagged    bool        `json:"flagged,omitempty"`
	Moderation *Moderation `json:"moderation,omitempty"`

	// Tag is the session-unique local identifier, assigned once on first
	// insertion into the collection.
	Tag string `json:"$tag,omitempty"`

	// Orphan is nil while anchoring has not been attempted or resolved.
	Orphan *bool `json:"$orphan,omitempty"`

	// AnchorTimeout is set when anchoring took longer than expected. It
	// does not imply Orphan.
	AnchorTimeout bool `json:"$anchorTimeout,omitempty"`

	Cluster HighlightCluster `json:"$cluster,omitempty"`

	// Highlight is set on new annotations created with the highlight
	// button.
	Highlight bool `json:"$highlight,omitempty"`
}

// AnnotationID identifies an annotation by server ID, local tag or both.
type AnnotationID struct {
	ID  string `json:"id,omitempty"`
	Tag string `json:"$tag,omitempty"`
}

// Identity returns the (id, tag) pair of a.
func (a Annotation) Identity() AnnotationID {
	return AnnotationID{ID: a.ID, Tag: a.Tag}
}

// HighlightCluster is the display classification of an annotation.
type HighlightCluster string

const (
	ClusterUserHighlights  HighlightCluster = "user-highlights"
	ClusterUserAnnotations HighlightCluster = "user-annotations"
	ClusterOtherContent    HighlightCluster = "other-content"
)

// Target identifies the document and region an annotation refers to.
type Target struct {
	Source      string     `json:"source"`
	Selector    []Selector `json:"selector,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Selector describes a document region. Which fields are set depends on
// Type (TextQuoteSelector, TextPositionSelector, RangeSelector,
// EPUBContentSelector, PageSelector).
type Selector struct {
	Type string `json:"type"`

	Exact  string `json:"exact,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`

	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`

	StartContainer string `json:"startContainer,omitempty"`
	EndContainer   string `json:"endContainer,omitempty"`
	StartOffset    *int   `json:"startOffset,omitempty"`
	EndOffset      *int   `json:"endOffset,omitempty"`

	URL   string `json:"url,omitempty"`
	CFI   string `json:"cfi,omitempty"`
	Title string `json:"title,omitempty"`

	Index *int   `json:"index,omitempty"`
	Label string `json:"label,omitempty"`
}

// Permissions lists the principals allowed each operation.
type Permissions struct {
	Read   []string `json:"read"`
	Update []string `json:"update"`
	Delete []string `json:"delete"`
}

type Document struct {
	Title string `json:"title,omitempty"`
}

type Links struct {
	InContext string `json:"incontext,omitempty"`
	HTML      string `json:"html,omitempty"`
}

type UserInfo struct {
	DisplayName string `json:"display_name,omitempty"`
}

// Moderation is present only for users allowed to moderate the group.
type Moderation struct {
	FlagCount int `json:"flagCount"`
}

// Mention is a user referenced from an annotation's text.
type Mention struct {
	UserID      string `json:"userid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Group is a collection scope annotations belong to.
type Group struct {
	ID           string        `json:"id"`
	GroupID      string        `json:"groupid,omitempty"`
	Type         string        `json:"type"`
	Name         string        `json:"name"`
	Organization *Organization `json:"organization,omitempty"`

	// Client-side attributes.
	IsMember      bool `json:"isMember"`
	IsScopedToURI bool `json:"isScopedToUri"`
	CanLeave      bool `json:"canLeave"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// GroupMember is a user belonging to the focused group.
type GroupMember struct {
	UserID      string `json:"userid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Profile describes the logged-in user. UserID is empty when logged out.
type Profile struct {
	UserID   string          `json:"userid,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
	UserInfo *UserInfo       `json:"user_info,omitempty"`
}

// ForAPI returns a copy of a with the client-only fields cleared.
func (a Annotation) ForAPI() Annotation {
	a.Tag = ""
	a.Orphan = nil
	a.AnchorTimeout = false
	a.Cluster = ""
	a.Highlight = false
	return a
}
