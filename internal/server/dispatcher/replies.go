package dispatcher

import (
	"errors"

	"github.com/dmitrijs2005/guildkeeper/internal/server/auth"
	"github.com/dmitrijs2005/guildkeeper/internal/server/report"
)

const (
	replyAlreadyRegistered = "You are already registered."
	replyPromptSent        = "I sent you a private message to complete your registration."
	replyDeliveryFailed    = "I couldn't send you a private message. Make sure your DMs are open and try again."
	replyInvalidFormat     = "Please provide a username and password in the format: `<username> <password>`"
	replyRegistered        = "Registration successful! Welcome, %s."
	replyUsage             = "Please provide a username and a password. Usage: `%slogin <username> <password> <module>`"
	replyUserNotFound      = "User not found."
	replyIncorrectPassword = "Incorrect password."
	replyRoleGrant         = "An error occurred while granting your role. Please contact an administrator."
	replyModuleLink        = "Here is the link for module %s: %s"
	replyModuleMissing     = "Please specify a valid module you want to access."
	replyForbidden         = "You do not have permission to use this command."
	replyApology           = "Something went wrong. Please try again later."
)

// outcome labels an error for the commands_total metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrInvalidFormat), errors.Is(err, auth.ErrUsage):
		return "invalid"
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrIncorrectPassword), errors.Is(err, report.ErrForbidden):
		return "rejected"
	case errors.Is(err, auth.ErrAlreadyRegistered):
		return "conflict"
	default:
		return "error"
	}
}
