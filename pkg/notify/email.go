package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/daviddao/potluck/pkg/model"
)

// Branding is the application identity printed in emails.
type Branding struct {
	AppName      string
	AppURL       string
	SupportEmail string
}

// Links are the calls to action in an invitation email.
type Links struct {
	Accept  string
	Decline string
	View    string
}

// Links builds the accept, decline and view URLs for n.
func (b Branding) Links(n model.InvitationNotice) Links {
	base := strings.TrimRight(b.AppURL, "/")
	inv := url.PathEscape(n.InvitationID)
	return Links{
		Accept:  base + "/invitations/" + inv + "?action=accept",
		Decline: base + "/invitations/" + inv + "?action=decline",
		View:    base + "/recipes/" + url.PathEscape(n.DocumentID),
	}
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h1>{{.AppName}}</h1>
  <p><strong>{{.Notice.InviterName}}</strong> invited you to collaborate on the recipe <strong>{{.Notice.DocumentTitle}}</strong>.</p>
  {{- if .Notice.Message}}
  <blockquote style="border-left: 3px solid #ccc; padding-left: 12px;">{{.Notice.Message}}</blockquote>
  {{- end}}
  <p>
    <a href="{{.Links.Accept}}">Accept invitation</a> |
    <a href="{{.Links.Decline}}">Decline</a> |
    <a href="{{.Links.View}}">View recipe</a>
  </p>
  <p style="font-size: 12px; color: #777;">This invitation expires in {{.ExpiryDays}} days.
  {{- if .SupportEmail}} Questions? Contact <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.{{end}}</p>
</body>
</html>
`))

// RenderInvitation renders the invitation email for n.
func (b Branding) RenderInvitation(n model.InvitationNotice) (Message, error) {
	appName := b.AppName
	if appName == "" {
		appName = "Potluck"
	}
	var buf bytes.Buffer
	err := invitationTemplate.Execute(&buf, struct {
		AppName      string
		SupportEmail string
		Notice       model.InvitationNotice
		Links        Links
		ExpiryDays   int
	}{appName, b.SupportEmail, n, b.Links(n), int(model.InvitationTTL.Hours() / 24)})
	if err != nil {
		return Message{}, fmt.Errorf("render invitation email: %w", err)
	}
	return Message{
		To:      n.RecipientEmail,
		Subject: fmt.Sprintf("%s invited you to collaborate on %q", n.InviterName, n.DocumentTitle),
		HTML:    buf.String(),
	}, nil
}
