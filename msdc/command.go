package msdc

import (
	"fmt"
)

// Command is the value written to SDC_CMD: the command index plus the
// response and data transfer type the controller has to expect.
type Command uint32

// Response types of the RSPTYP field.
const (
	rspNone = 0
	rspR1   = 1
	rspR2   = 2
	rspR3   = 3
	rspR6   = 6
	rspR1b  = 7
)

const (
	cmdRspTypePos = 7
	cmdDTypePos   = 11
	dtypeSingle   = 1
)

func newCommand(index uint8, rsp uint32, singleBlock bool) Command {
	c := uint32(index&0x3F) | rsp<<cmdRspTypePos
	if singleBlock {
		c |= dtypeSingle << cmdDTypePos
	}
	return Command(c)
}

// The subset of the SD command set needed for identification and block reads.
var (
	CmdGoIdle        = newCommand(0, rspNone, false)
	CmdAllSendCID    = newCommand(2, rspR2, false)
	CmdSendRelAddr   = newCommand(3, rspR6, false)
	CmdSelectCard    = newCommand(7, rspR1b, false)
	CmdSendIfCond    = newCommand(8, rspR1, false)
	CmdSendCSD       = newCommand(9, rspR2, false)
	CmdReadSingle    = newCommand(17, rspR1, true)
	CmdAppCmd        = newCommand(55, rspR1, false)
	AppCmdSendOpCond = newCommand(41, rspR3, false)
)

// Index returns the SD command index.
func (c Command) Index() uint8 {
	return uint8(c & 0x3F)
}

// longResponse reports whether the command returns a 136 bit (CID/CSD) response.
func (c Command) longResponse() bool {
	i := c.Index()
	return i == 2 || i == 9
}

func (c Command) String() string {
	return fmt.Sprintf("CMD%d", c.Index())
}

// Arguments.
const (
	IfCondPattern = 0x000001AA
	OpCondHCS     = 0x40FF8000 // high capacity support + 2.7-3.6 V window
	OpCondSDSC    = 0x00FF8000

	// ocrReady is set once the card finished its power up.
	ocrReady = 1 << 31
	// ocrCCS is set by high capacity cards.
	ocrCCS = 1 << 30
)

// Response holds the response registers. Response[0] is RES0 and contains
// the short response or bits 31..0 of a long one, Response[3] is RES3 with
// bits 127..96.
type Response [4]uint32

// command issues cmd on regs and waits for its status.
// A status without timeout or CRC bits, including none at all within the
// timeout, counts as success because CMDRDY may already have been cleared.
func (s *Session) command(regs Registers, cmd Command, arg uint32) (Response, error) {
	idx := cmd.Index()

	// Clear lingering status of the previous command.
	regs.Read32(RegCMDSTA)
	s.log.Debug("Command", "cmd", idx, "arg", hex(arg), "raw", hex(uint32(cmd)), "sta", hex(regs.Read32(RegSTA)))

	regs.Write32(RegSDCARG, arg)
	regs.Write32(RegSDCCMD, uint32(cmd))

	var status uint32
	dl := newDeadline(s.cfg.Delayer, s.cfg.CommandTimeout, s.cfg.PollStep)
	dl.until(func() bool {
		status = regs.Read32(RegCMDSTA)
		return status != 0
	})

	switch {
	case status&CMDSTACMDTO != 0:
		s.log.Debug("Command timeout", "cmd", idx, "status", hex(status))
		return Response{}, &CommandError{Index: idx, Arg: arg, Result: ResultTimeout}
	case status&CMDSTARSPCRCERR != 0:
		s.log.Debug("Command CRC error", "cmd", idx, "status", hex(status))
		return Response{}, &CommandError{Index: idx, Arg: arg, Result: ResultCRCError}
	}

	var resp Response
	switch {
	case idx == 0:
		// No response.
	case cmd.longResponse():
		resp[0] = regs.Read32(RegRES0)
		resp[1] = regs.Read32(RegRES1)
		resp[2] = regs.Read32(RegRES2)
		resp[3] = regs.Read32(RegRES3)
		s.log.Debug("Long response", "cmd", idx,
			"res3", hex(resp[3]), "res2", hex(resp[2]), "res1", hex(resp[1]), "res0", hex(resp[0]))
	default:
		resp[0] = regs.Read32(RegRES0)
		s.log.Debug("Response", "cmd", idx, "res0", hex(resp[0]))
	}

	return resp, nil
}

// appCommand sends CMD55 followed by the application command.
func (s *Session) appCommand(regs Registers, cmd Command, arg uint32) (Response, error) {
	if _, err := s.command(regs, CmdAppCmd, 0); err != nil {
		return Response{}, err
	}
	return s.command(regs, cmd, arg)
}

func hex(v uint32) string {
	return fmt.Sprintf("%08X", v)
}
