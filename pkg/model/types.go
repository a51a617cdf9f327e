// Package model defines the core domain types for potluck.
//
// Potluck coordinates several people editing one shared recipe:
//
//   - Invitations are time-boxed offers, addressed to one email, to become a
//     collaborator on one document. They leave the pending state exactly
//     once and are kept forever as an audit trail.
//
//   - Presence is a short-lived liveness signal refreshed by heartbeats. A
//     record is active while its last heartbeat is younger than the
//     presence timeout; stale records are filtered out on read.
//
//   - Activity is an append-only log of what users did to a document. A
//     polling client reads it back through a point-in-time Snapshot.
package model

import (
	"strings"
	"time"
)

// InvitationTTL is the lifetime of an invitation, measured from creation.
const InvitationTTL = 7 * 24 * time.Hour

// DefaultPresenceTimeout is how long a heartbeat keeps a user active.
const DefaultPresenceTimeout = 120 * time.Second

// RecentActivityLimit is the number of events carried in a Snapshot.
const RecentActivityLimit = 10

// RoleCollaborator is the only role granted through an invitation.
const RoleCollaborator = "collaborator"

// InvitationStatus enumerates the stored lifecycle states of an invitation.
// "Expired" is derived from ExpiresAt and never stored.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusDeclined InvitationStatus = "declined"
)

// Valid reports whether s is one of the stored states.
func (s InvitationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether s is a response status (accepted or declined).
func (s InvitationStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// ResponseAction is what an invitee does with an invitation.
type ResponseAction string

const (
	ActionAccept  ResponseAction = "accept"
	ActionDecline ResponseAction = "decline"
)

// TargetStatus maps an action to the status it transitions to. The second
// result is false for unknown actions.
func (a ResponseAction) TargetStatus() (InvitationStatus, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionDecline:
		return StatusDeclined, true
	}
	return "", false
}

// NormalizeEmail trims and lowercases an address. All stored and compared
// emails go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail compares two addresses case-insensitively.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// Identity is the resolved caller of an inbound operation.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// DisplayName falls back to the email when the user has no name.
func (id Identity) DisplayName() string {
	if id.Name != "" {
		return id.Name
	}
	return id.Email
}

// User is a registered account in the user directory.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the caller identity for u.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
}

// Invitation is an offer for InvitedEmail to collaborate on DocumentID.
type Invitation struct {
	ID           string           `json:"id"`
	DocumentID   string           `json:"document_id"`
	InviterID    string           `json:"inviter_id"`
	InviterName  string           `json:"inviter_name"`
	InvitedEmail string           `json:"invited_email"`
	InvitedName  string           `json:"invited_name"`
	Message      string           `json:"message,omitempty"`
	Status       InvitationStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`
}

// Expired reports whether the invitation can no longer be acted on at now.
// The invitation is still valid at exactly ExpiresAt.
func (inv Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// Actionable reports whether the invitation is pending and unexpired.
func (inv Invitation) Actionable(now time.Time) bool {
	return inv.Status == StatusPending && !inv.Expired(now)
}

// Collaborator is a membership entry on a document.
type Collaborator struct {
	UserID  string    `json:"user_id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"added_at"`
	AddedBy string    `json:"added_by"`
}

// Document is the shared recipe. Content is the opaque recipe body
// (ingredients, steps, ...) owned by the document store.
type Document struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Content       string         `json:"content,omitempty"`
	AuthorID      string         `json:"author_id"`
	AuthorName    string         `json:"author_name"`
	IsPublic      bool           `json:"is_public"`
	Collaborators []Collaborator `json:"collaborators"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HasCollaborator reports whether email is already in the collaborator set.
func (d Document) HasCollaborator(email string) bool {
	for _, c := range d.Collaborators {
		if SameEmail(c.Email, email) {
			return true
		}
	}
	return false
}

// CanView reports whether id may read the document: public documents are
// readable by anyone, private ones by the author and collaborators.
func (d Document) CanView(id Identity) bool {
	return d.IsPublic || d.AuthorID == id.UserID || d.HasCollaborator(id.Email)
}

// Presence is the liveness record for one user on one document.
type Presence struct {
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	LastSeen   time.Time `json:"last_seen"`
}

// Active reports whether the record is within timeout of now.
func (p Presence) Active(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastSeen) <= timeout
}

// Activity is a single entry in a document's append-only activity log.
type Activity struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LastActivity is a user's newest event on a document.
type LastActivity struct {
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the composite a polling client receives. It is assembled on
// demand and never persisted.
type Snapshot struct {
	Document             Document                `json:"document"`
	RecentActivity       []Activity              `json:"recent_activity"`
	CollaboratorActivity map[string]LastActivity `json:"collaborator_activity"`
	SyncTimestamp        time.Time               `json:"sync_timestamp"`
}

// InvitationNotice is what the notifier needs to tell an invitee about an
// invitation.
type InvitationNotice struct {
	RecipientEmail string `json:"recipient_email"`
	DocumentTitle  string `json:"document_title"`
	InviterName    string `json:"inviter_name"`
	Message        string `json:"message,omitempty"`
	InvitationID   string `json:"invitation_id"`
	DocumentID     string `json:"document_id"`
}
