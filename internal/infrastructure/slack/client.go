package slack

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/slack-go/slack"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
)

// Client posts rendered bot messages through the Slack Web API.
type Client struct {
	api      *slack.Client
	renderer *BlockRenderer
}

// NewClient creates a new Slack client around an API handle.
func NewClient(api *slack.Client) *Client {
	return &Client{
		api:      api,
		renderer: NewBlockRenderer(),
	}
}

// PostMessage renders msg and posts it with the bot identity.
// Returns the timestamp of the posted message.
func (c *Client) PostMessage(ctx context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) (string, error) {
	if msg.Content.IsEmpty() {
		return "", domainerrors.NewPermanentError("posting slack message", errors.New("message has no content"))
	}

	rendered := c.renderer.Render(msg.Content)
	options := append(rendered.MsgOptions(), identityOptions(identity)...)
	if msg.ThreadID != "" {
		options = append(options, slack.MsgOptionTS(msg.ThreadID))
	}

	_, timestamp, err := c.api.PostMessageContext(ctx, msg.ChannelID, options...)
	if err != nil {
		return "", categorizeSlackError(err, "posting slack message")
	}

	return timestamp, nil
}

func identityOptions(identity entity.BotIdentity) []slack.MsgOption {
	var options []slack.MsgOption
	if identity.DisplayName != "" {
		options = append(options, slack.MsgOptionUsername(identity.DisplayName))
	}
	switch {
	case identity.Icon == "":
	case identity.IconIsEmoji():
		options = append(options, slack.MsgOptionIconEmoji(identity.Icon))
	default:
		options = append(options, slack.MsgOptionIconURL(identity.Icon))
	}
	return options
}

// categorizeSlackError wraps Slack API errors as transient or permanent domain errors.
func categorizeSlackError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Rate limiting carries the delay Slack asked for
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return domainerrors.NewRateLimitedError(
			fmt.Sprintf("%s: rate limited", operation),
			rateLimited.RetryAfter,
			err,
		)
	}

	// Check for network errors (transient)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: network error", operation),
			err,
		)
	}

	// Check for Slack API errors
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch slackErr.Err {
		case "rate_limited", "ratelimited":
			return domainerrors.NewTransientError(
				fmt.Sprintf("%s: rate limited", operation),
				err,
			)

		// Server errors - transient
		case "internal_error", "fatal_error", "service_unavailable", "request_timeout":
			return domainerrors.NewTransientError(
				fmt.Sprintf("%s: slack server error", operation),
				err,
			)

		// Unknown Slack errors are treated as permanent too
		default:
			return domainerrors.NewPermanentError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)
		}
	}

	// Check for context errors (transient)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: context timeout", operation),
			err,
		)
	}

	// Default to permanent error
	return domainerrors.NewPermanentError(
		fmt.Sprintf("%s: %v", operation, err),
		err,
	)
}
