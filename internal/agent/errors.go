package agent

import "errors"

var (
	errEmptyReply    = errors.New("agent: empty reply")
	errNoChatFactory = errors.New("agent: no chat factory configured")
	errNoHinter      = errors.New("agent: no hinter configured")
	errNoRecorder    = errors.New("agent: no recorder configured")
)
