package jsf

import "errors"

// Failure taxonomy for remote interactions. Callers match with errors.Is and
// decide scope: auth errors trigger re-login and a restart of the current
// step, protocol and remote errors abort the current draft only.
var (
	ErrAuth           = errors.New("login rejected by remote")
	ErrSessionExpired = errors.New("session expired")
	ErrProtocol       = errors.New("unexpected remote markup")
	ErrRemote         = errors.New("remote reported an error")
)

// ErrorMarker is the CSS class the remote embeds in a response when an
// operation failed; status codes are 200 either way.
const ErrorMarker = "ui-messages-error"
