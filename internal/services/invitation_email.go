package services

import (
	"fmt"
	"net/url"

	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/pkg/mail"
)

// acceptPath is the landing page for invitees who already hold an account;
// registerPath is for invitees who still need to create one. The token query
// parameter is the sole credential in either case.
const (
	acceptPath   = "/accept-invitation"
	registerPath = "/register"
)

func invitationLink(baseURL, token string, hasAccount bool) string {
	path := registerPath
	if hasAccount {
		path = acceptPath
	}
	return fmt.Sprintf("%s%s?token=%s", baseURL, path, url.QueryEscape(token))
}

func invitationMessage(invitation *models.Invitation, baseURL string, hasAccount bool) mail.Message {
	link := invitationLink(baseURL, invitation.Token, hasAccount)

	if hasAccount {
		return mail.Message{
			To:      []string{invitation.Email},
			Subject: "You're invited to contribute on Casavia",
			HTML: fmt.Sprintf(
				"<p>Hello,</p>"+
					"<p>You have been invited to contribute articles and guides on Casavia. "+
					"Open the link below while signed in to accept:</p>"+
					"<p><a href=%q>Accept your invitation</a></p>"+
					"<p>The invitation expires on %s. If you did not expect this email, you can ignore it.</p>",
				link, invitation.ExpiresAt.Format("2 January 2006"),
			),
		}
	}

	return mail.Message{
		To:      []string{invitation.Email},
		Subject: "Join Casavia as a contributor",
		HTML: fmt.Sprintf(
			"<p>Hello,</p>"+
				"<p>You have been invited to join Casavia as a contributor. "+
				"Create your account to get started:</p>"+
				"<p><a href=%q>Create your account</a></p>"+
				"<p>The invitation expires on %s. If you did not expect this email, you can ignore it.</p>",
			link, invitation.ExpiresAt.Format("2 January 2006"),
		),
	}
}

func revocationMessage(email string) mail.Message {
	return mail.Message{
		To:      []string{email},
		Subject: "Your Casavia contributor access has been withdrawn",
		HTML: "<p>Hello,</p>" +
			"<p>Your contributor invitation for Casavia has been revoked and any " +
			"associated contributor access has been removed.</p>" +
			"<p>If you believe this happened in error, please contact the team.</p>",
	}
}
