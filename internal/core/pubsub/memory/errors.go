// Package memory provides the in-process topic broker.
package memory

import "errors"

var (
	// ErrBrokerClosed is returned when operating on a closed broker.
	ErrBrokerClosed = errors.New("broker is closed")

	// ErrEmptyTopic is returned when subscribing or publishing without a topic.
	ErrEmptyTopic = errors.New("topic is empty")
)
