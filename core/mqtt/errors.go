package mqtt

import "errors"

var (
	// ErrPublish is returned when a message could not be published after
	// all retries.
	ErrPublish = errors.New("mqtt publish failed")
	// ErrBadTopic is returned for messages received on an unexpected topic.
	ErrBadTopic = errors.New("unexpected mqtt topic")
)
