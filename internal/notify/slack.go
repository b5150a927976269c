package notify

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackAPI is the minimal Slack API surface needed by the sink.
type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackSink posts error notifications to a Slack channel. Posting failures
// are logged and dropped; a broken notifier must never take the sync loop
// down with it.
type SlackSink struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackSink creates a sink posting to the given channel.
func NewSlackSink(api SlackAPI, channel string, logger zerolog.Logger) *SlackSink {
	return &SlackSink{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify_slack").Logger(),
	}
}

func (s *SlackSink) Error(id, title, message string) {
	text := fmt.Sprintf(":warning: *%s*\n%s", title, message)
	_, _, err := s.api.PostMessage(s.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		s.logger.Warn().Str("id", id).Err(err).Msg("failed posting notification to Slack")
	}
}
