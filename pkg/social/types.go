// Package social is the typed domain layer of the ThoughtNet client:
// thoughts, comments, likes, connections, notifications, messages and
// profiles, plus one reconciliation scope per UI surface (LikeFeed,
// CommentThread, NotificationFeed, Conversation, SavedList,
// ConnectionList, ThoughtFeed).
//
// Rows arrive from the backend with optional joined fields; Normalize
// applies defensive defaults once, at the boundary, so views never deal
// with absent authors or zero timestamps.
package social

import (
	"regexp"
	"time"
)

// Table names in the backend's schema.
const (
	TableThoughts      = "thoughts"
	TableComments      = "thought_comments"
	TableLikes         = "thought_likes"
	TableConnections   = "connections"
	TableNotifications = "notifications"
	TableMessages      = "messages"
	TableProfiles      = "profiles"
	TableSaved         = "saved_thoughts"
)

// Visibility controls who can read a thought.
type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityConnections  Visibility = "connections"
	VisibilityOrganization Visibility = "organization"
)

// Profile is a user's public fields, often joined onto other rows.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// EntityID implements store.Entity.
func (p Profile) EntityID() string { return p.ID }

// placeholderProfile is rendered when the author join came back empty.
func placeholderProfile(userID string) *Profile {
	return &Profile{
		ID:          userID,
		Username:    "unknown",
		DisplayName: "Unknown user",
	}
}

// Thought is one short post. LikesCount and CommentsCount are
// server-maintained aggregates: eventually consistent, reconciled rather
// than trusted.
type Thought struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Content       string     `json:"content"`
	MediaURL      string     `json:"media_url,omitempty"`
	Visibility    Visibility `json:"visibility"`
	LikesCount    int        `json:"likes_count"`
	CommentsCount int        `json:"comments_count"`
	ParentID      string     `json:"parent_id,omitempty"`
	CommunityID   string     `json:"community_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Author        *Profile   `json:"author,omitempty"`

	// Pending marks an optimistic entity not yet confirmed by the server.
	Pending bool `json:"-"`
}

// EntityID implements store.Entity.
func (t Thought) EntityID() string { return t.ID }

// Normalize applies boundary defaults.
func (t Thought) Normalize() Thought {
	if t.Visibility == "" {
		t.Visibility = VisibilityPublic
	}
	if t.Author == nil {
		t.Author = placeholderProfile(t.UserID)
	}
	if t.LikesCount < 0 {
		t.LikesCount = 0
	}
	if t.CommentsCount < 0 {
		t.CommentsCount = 0
	}
	return t
}

// Comment is one comment or reply on a thought. Deletion is a hard remove.
type Comment struct {
	ID        string    `json:"id"`
	ThoughtID string    `json:"thought_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    *Profile  `json:"author,omitempty"`

	Pending bool `json:"-"`
}

// EntityID implements store.Entity.
func (c Comment) EntityID() string { return c.ID }

// Normalize applies boundary defaults.
func (c Comment) Normalize() Comment {
	if c.Author == nil {
		c.Author = placeholderProfile(c.UserID)
	}
	return c
}

// SameComment is the dedupe heuristic correlating a pending optimistic
// comment with an authoritative row whose id the feed handler can't know:
// same author, same body. Identical text posted twice in quick succession
// is ambiguous under this heuristic; see DESIGN.md.
func SameComment(a, b Comment) bool {
	return a.UserID == b.UserID && a.Content == b.Content
}

// Like is one (thought, user) pair in thought_likes. At most one exists per
// pair; existence is the whole signal.
type Like struct {
	ThoughtID string    `json:"thought_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// LikeState is the client-side aggregate a LikeFeed holds per rendered
// thought: the server-maintained count plus whether the viewer has liked it.
type LikeState struct {
	ThoughtID string `json:"thought_id"`
	Count     int    `json:"count"`
	Liked     bool   `json:"liked"`
}

// EntityID implements store.Entity.
func (l LikeState) EntityID() string { return l.ThoughtID }

// ConnectionStatus is the lifecycle of a connection request.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
)

// Connection is directional while pending (requester vs addressee decides
// which affordance renders) and undirected once accepted.
type Connection struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      ConnectionStatus `json:"status"`
	Viewed      bool             `json:"viewed"`
	CreatedAt   time.Time        `json:"created_at"`

	Pending bool `json:"-"`
}

// EntityID implements store.Entity.
func (c Connection) EntityID() string { return c.ID }

// Involves reports whether userID is either side of the connection.
func (c Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.AddresseeID == userID
}

// Other returns the opposite party to userID.
func (c Connection) Other(userID string) string {
	if c.RequesterID == userID {
		return c.AddresseeID
	}
	return c.RequesterID
}

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationMessage    NotificationType = "message"
	NotificationConnection NotificationType = "connection"
	NotificationLike       NotificationType = "like"
	NotificationComment    NotificationType = "comment"
	NotificationMention    NotificationType = "mention"
	NotificationCommunity  NotificationType = "community"
)

// Notification is created by backend triggers and RPCs, never directly by
// the viewing client, and purged after the retention window.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// EntityID implements store.Entity.
func (n Notification) EntityID() string { return n.ID }

// Message is one direct message. Access is gated server-side on the pair
// having an accepted connection.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	AudioURL   string    `json:"audio_url,omitempty"`
	Read       bool      `json:"is_read"`
	ReplyToID  string    `json:"reply_to_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Pending bool `json:"-"`
}

// EntityID implements store.Entity.
func (m Message) EntityID() string { return m.ID }

// SameMessage is the dedupe heuristic for optimistic messages.
func SameMessage(a, b Message) bool {
	return a.SenderID == b.SenderID && a.Content == b.Content && a.AudioURL == b.AudioURL
}

// SavedThought is one row in the viewer's saved list.
type SavedThought struct {
	ID        string    `json:"id"`
	ThoughtID string    `json:"thought_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Pending bool `json:"-"`
}

// EntityID keys saved rows by thought so save/unsave toggles collapse to
// one entry per thought.
func (s SavedThought) EntityID() string { return s.ThoughtID }

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9._-]+)`)

// MentionedUsernames extracts @username mentions from a thought's body.
func MentionedUsernames(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
