package msdc

import (
	"errors"
	"fmt"
)

// These errors may occur while initializing the card or reading from it.
// They are wrapped by checkpoint, so use errors.Is to check for them.
var (
	ErrHardwareTimeout  = errors.New("hardware timeout")
	ErrProtocol         = errors.New("protocol error")
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrNoCard           = errors.New("no card found on any controller")
	ErrNotInitialized   = errors.New("no card initialized")
)

// Result is the outcome of a single command.
type Result int

const (
	ResultOK Result = iota
	ResultTimeout
	ResultCRCError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultTimeout:
		return "timeout"
	case ResultCRCError:
		return "crc error"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// CommandError indicates that the controller reported a timeout or a
// response CRC error for a command.
type CommandError struct {
	Index  uint8
	Arg    uint32
	Result Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("CMD%d (arg 0x%08X): %v", e.Index, e.Arg, e.Result)
}

// Is maps the result onto ErrHardwareTimeout and ErrProtocol.
func (e *CommandError) Is(target error) bool {
	switch e.Result {
	case ResultTimeout:
		return target == ErrHardwareTimeout
	case ResultCRCError:
		return target == ErrProtocol
	}
	return false
}
