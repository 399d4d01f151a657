// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// LoginRequest is the body for password login.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	DeviceID                 string `json:"device_id,omitempty"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// MessageContent is the content body of an m.room.message event.
type MessageContent struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewHTMLMessage creates a message with both a plain-text body (shown
// by clients that don't render HTML) and an HTML rendering.
func NewHTMLMessage(body, htmlBody string) MessageContent {
	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: htmlBody,
	}
}

// Event is a Matrix event from a /sync response.
type Event struct {
	EventID        string         `json:"event_id"`
	Type           string         `json:"type"`
	Sender         string         `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	StateKey       *string        `json:"state_key,omitempty"`
}

// TextBody extracts the body of an m.text room message. The second
// return is false for any other event shape.
func (e Event) TextBody() (string, bool) {
	if e.Type != "m.room.message" {
		return "", false
	}
	if msgType, _ := e.Content["msgtype"].(string); msgType != "m.text" {
		return "", false
	}
	body, ok := e.Content["body"].(string)
	return body, ok
}

// Membership returns the membership field of an m.room.member event,
// or "" for other event types.
func (e Event) Membership() string {
	if e.Type != "m.room.member" {
		return ""
	}
	membership, _ := e.Content["membership"].(string)
	return membership
}

// SyncOptions controls the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch from the previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds
	SetTimeout bool   // send the timeout parameter (distinguishes "not set" from "0")
	Filter     string // inline JSON filter
}

// SyncResponse is the top-level /sync response.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups per-room sync data by membership state.
type RoomsSection struct {
	Join   map[string]JoinedRoom  `json:"join,omitempty"`
	Invite map[string]InvitedRoom `json:"invite,omitempty"`
	Leave  map[string]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom holds sync data for a room the agent has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom holds the stripped state for a pending invite.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// Inviter returns the sender of the m.room.member invite event
// addressed to invitee. Empty when the stripped state doesn't carry
// one (the membership policy then treats the invite as untrusted
// unless every actor is trusted).
func (r InvitedRoom) Inviter(invitee string) string {
	for _, event := range r.InviteState.Events {
		if event.Membership() != "invite" {
			continue
		}
		if event.StateKey != nil && *event.StateKey == invitee {
			return event.Sender
		}
	}
	return ""
}

// LeftRoom holds sync data for a room the agent has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection holds timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection holds state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// SendEventResponse is returned by SendMessage.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// JoinedRoomsResponse is returned by JoinedRooms.
type JoinedRoomsResponse struct {
	JoinedRooms []string `json:"joined_rooms"`
}
