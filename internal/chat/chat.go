// Package chat models the Kakao i open-builder skill protocol: the request
// envelope the platform posts to /skill and the response templates sent back
// through the callback URL.
package chat

import (
	"errors"
	"strings"
)

// Version is the protocol version every response carries.
const Version = "2.0"

// ErrMalformedRequest is returned when a skill request lacks the user id.
var ErrMalformedRequest = errors.New("chat: malformed skill request")

// SkillRequest is the envelope posted by the platform.
type SkillRequest struct {
	UserRequest UserRequest `json:"userRequest"`
}

// UserRequest carries the utterance and the callback for deferred replies.
type UserRequest struct {
	Utterance   string `json:"utterance"`
	CallbackURL string `json:"callbackUrl,omitempty"`
	User        User   `json:"user"`
}

// User identifies the chatting user.
type User struct {
	ID string `json:"id"`
}

// Validate checks the fields the bot depends on.
func (r SkillRequest) Validate() error {
	if strings.TrimSpace(r.UserRequest.User.ID) == "" {
		return ErrMalformedRequest
	}
	return nil
}

// UserID is shorthand for r.UserRequest.User.ID.
func (r SkillRequest) UserID() string {
	return r.UserRequest.User.ID
}

// Response is a skill response.
type Response struct {
	Version     string    `json:"version"`
	Template    *Template `json:"template,omitempty"`
	UseCallback bool      `json:"useCallback,omitempty"`
}

// Template holds the rendered outputs.
type Template struct {
	Outputs []Output `json:"outputs"`
}

// Output is one rendered component; exactly one field is set.
type Output struct {
	SimpleText *SimpleText `json:"simpleText,omitempty"`
	BasicCard  *BasicCard  `json:"basicCard,omitempty"`
}

type SimpleText struct {
	Text string `json:"text"`
}

type BasicCard struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   Thumbnail `json:"thumbnail"`
	Buttons     []Button  `json:"buttons,omitempty"`
}

type Thumbnail struct {
	ImageURL string `json:"imageUrl"`
}

type Button struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	MessageText string `json:"messageText,omitempty"`
}

// TextResponse wraps text in a simpleText output.
func TextResponse(text string) Response {
	return Response{
		Version:  Version,
		Template: &Template{Outputs: []Output{{SimpleText: &SimpleText{Text: text}}}},
	}
}

// ImageResponse shows the chart as a basic card with a restart button.
func ImageResponse(imageURL, summary string) Response {
	return Response{
		Version: Version,
		Template: &Template{Outputs: []Output{{BasicCard: &BasicCard{
			Title:       ReportTitle,
			Description: summary,
			Thumbnail:   Thumbnail{ImageURL: imageURL},
			Buttons:     []Button{{Action: "message", Label: RestartLabel, MessageText: RestartUtterance}},
		}}}},
	}
}

// CallbackAck tells the platform the real answer follows on the callback URL.
func CallbackAck() Response {
	return Response{Version: Version, UseCallback: true}
}

// Text returns the concatenated text of all simpleText outputs and card
// descriptions.
func (r Response) Text() string {
	if r.Template == nil {
		return ""
	}
	var parts []string
	for _, o := range r.Template.Outputs {
		switch {
		case o.SimpleText != nil:
			parts = append(parts, o.SimpleText.Text)
		case o.BasicCard != nil:
			parts = append(parts, o.BasicCard.Description)
		}
	}
	return strings.Join(parts, "\n")
}
