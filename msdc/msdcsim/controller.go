package msdcsim

import (
	"encoding/binary"
	"sync"

	"github.com/aligator/sdfat/msdc"
)

// Command is a command captured by the controller.
type Command struct {
	Index uint8
	Arg   uint32
	Raw   uint32
}

// Controller is a simulated MSDC register window implementing msdc.Registers.
// A nil card is an empty slot: every command times out.
type Controller struct {
	// ResetStuck keeps the reset bit of MSDC_CFG set forever.
	ResetStuck bool

	mu       sync.Mutex
	card     *Card
	regs     [msdc.RegistersEnd / 4]uint32
	fifo     []uint32
	commands []Command
}

var _ msdc.Registers = (*Controller)(nil)

// NewController puts card into the slot of a new controller.
func NewController(card *Card) *Controller {
	return &Controller{card: card}
}

// Commands returns all commands issued so far.
func (c *Controller) Commands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Command(nil), c.commands...)
}

// Register returns the stored value of a register without read side effects.
func (c *Controller) Register(offset uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.regs[offset/4]
}

func (c *Controller) Read32(offset uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset >= msdc.RegistersEnd {
		return 0
	}

	switch offset {
	case msdc.RegCMDSTA:
		// Clear on read.
		v := c.regs[offset/4]
		c.regs[offset/4] = 0
		return v
	case msdc.RegSTA:
		v := c.regs[offset/4]
		if len(c.fifo) > 0 {
			v |= msdc.STADRQ
		}
		return v
	case msdc.RegDAT:
		if len(c.fifo) == 0 {
			return 0
		}
		v := c.fifo[0]
		c.fifo = c.fifo[1:]
		return v
	case msdc.RegPS:
		v := c.regs[offset/4]
		if c.card != nil {
			v |= msdc.PSPIN0
		}
		return v
	}

	return c.regs[offset/4]
}

func (c *Controller) Write32(offset uint32, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset >= msdc.RegistersEnd {
		return
	}

	switch offset {
	case msdc.RegCFG:
		if value&msdc.CFGRST != 0 {
			c.fifo = nil
			if !c.ResetStuck {
				value &^= msdc.CFGRST
			}
		}
	case msdc.RegSTA:
		if value&msdc.STAFIFOCLR != 0 {
			c.fifo = nil
		}
		value &^= msdc.STAFIFOCLR | msdc.STADRQ
	case msdc.RegSDCCMD:
		c.regs[offset/4] = value
		c.execute(value)
		return
	}

	c.regs[offset/4] = value
}

// execute runs the command written to SDC_CMD and updates the status and
// response registers.
func (c *Controller) execute(raw uint32) {
	arg := c.regs[msdc.RegSDCARG/4]
	index := uint8(raw & 0x3F)
	c.commands = append(c.commands, Command{Index: index, Arg: arg, Raw: raw})

	if c.card == nil {
		c.regs[msdc.RegCMDSTA/4] = msdc.CMDSTACMDTO
		return
	}

	r := c.card.handle(index, arg)
	switch {
	case r.timeout:
		c.regs[msdc.RegCMDSTA/4] = msdc.CMDSTACMDTO
		return
	case r.crc:
		c.regs[msdc.RegCMDSTA/4] = msdc.CMDSTARSPCRCERR
		return
	}

	c.regs[msdc.RegCMDSTA/4] = msdc.CMDSTACMDRDY
	c.regs[msdc.RegRES0/4] = r.res[0]
	c.regs[msdc.RegRES1/4] = r.res[1]
	c.regs[msdc.RegRES2/4] = r.res[2]
	c.regs[msdc.RegRES3/4] = r.res[3]

	for i := 0; i+4 <= len(r.data); i += 4 {
		c.fifo = append(c.fifo, binary.LittleEndian.Uint32(r.data[i:]))
	}
}
