// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package host

// Event types dispatched by a Host.
const (
	SuccessEvent = "shader-success"
	ErrorEvent   = "shader-error"
)

// Default error messages, used when the cause carries no text.
const (
	initMessage   = "Error initializing shader"
	updateMessage = "Error updating shader"
	drawMessage   = "Error rendering shader"
)

// Event is a signal bubbling out of a host into the document.
// Success events carry no detail.
type Event struct {
	Type     string
	Message  string
	Cause    error
	Bubbles  bool
	Composed bool
}

// Listener receives the events of a host.
type Listener interface {
	Dispatch(Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

// Dispatch implements Listener
func (f ListenerFunc) Dispatch(e Event) {
	f(e)
}

func successEvent() Event {
	return Event{
		Type:     SuccessEvent,
		Bubbles:  true,
		Composed: true,
	}
}

func errorEvent(cause error, fallback string) Event {
	message := fallback
	if cause != nil && cause.Error() != "" {
		message = cause.Error()
	}
	return Event{
		Type:     ErrorEvent,
		Message:  message,
		Cause:    cause,
		Bubbles:  true,
		Composed: true,
	}
}
