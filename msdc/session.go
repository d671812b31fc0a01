// Package msdc drives the MSDC SD host controllers of the MT6261 in polled
// single bit mode: card identification and single block reads.
package msdc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	log "github.com/fclairamb/go-log"

	"github.com/aligator/sdfat/checkpoint"
)

// BlockSize is the only supported block length.
const BlockSize = 512

// CardType is the result of the operating condition negotiation.
type CardType int

const (
	CardNone CardType = iota
	// CardSDSC is a standard capacity card, addressed in bytes.
	CardSDSC
	// CardSDHC is a high capacity card, addressed in blocks.
	CardSDHC
)

func (t CardType) String() string {
	switch t {
	case CardNone:
		return "none"
	case CardSDSC:
		return "SDSC"
	case CardSDHC:
		return "SDHC"
	default:
		return fmt.Sprintf("CardType(%d)", int(t))
	}
}

// NoController is returned by ActiveController before a successful Init.
const NoController = -1

// Diagnostic stages of the identification sequence.
const (
	StageCMD0          = "CMD0"
	StageOpCondLoop    = "ACMD41 loop"
	StageOpCondTimeout = "ACMD41 timeout"
	StageCMD2          = "CMD2"
	StageCMD3          = "CMD3"
	StageCMD7          = "CMD7"
)

// Session is the state of one card on one of the host controllers.
// It is not safe for concurrent use.
type Session struct {
	controllers []Registers
	cfg         Config
	log         log.Logger

	cardType  CardType
	rca       uint16
	active    int
	capacity  uint64
	lastStage string
}

// New creates a session for the given controllers. Init probes them in order,
// so controllers[0] is tried first. Nothing is touched before Init.
func New(controllers []Registers, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		controllers: controllers,
		cfg:         cfg,
		log:         cfg.Logger,
		active:      NoController,
	}
}

// Init identifies a card on the first controller where the complete sequence
// succeeds. It can be called again to re-probe.
func (s *Session) Init() error {
	s.active = NoController
	s.cardType = CardNone
	s.rca = 0
	s.capacity = 0

	err := errors.New("no controllers")
	for i, regs := range s.controllers {
		err = s.probe(i, regs)
		if err == nil {
			s.active = i
			s.lastStage = ""
			s.log.Info("Card ready",
				"controller", i, "type", s.cardType.String(), "rca", fmt.Sprintf("%04X", s.rca), "capacity_mb", s.CapacityMB())
			return nil
		}

		s.cardType = CardNone
		s.rca = 0
		s.capacity = 0
		s.lastStage = checkpoint.StageOf(err)
		s.log.Warn("Controller probe failed", "controller", i, "stage", s.lastStage, "err", err)
	}

	return checkpoint.Wrap(err, ErrNoCard)
}

// probe runs the identification sequence on one controller.
func (s *Session) probe(index int, regs Registers) error {
	s.cardType = CardNone
	s.capacity = 0

	s.powerUp(index)
	s.dumpRegisters(regs, "pre")

	s.reset(regs)
	s.configure(regs)

	// Enable card detection and give it 32 cycles to settle.
	setBits(regs, RegPS, PSCDEN|PSPIEN0)
	s.cfg.Delayer.Delay(2 * time.Millisecond)
	ps := regs.Read32(RegPS)
	s.log.Debug("Card detect", "controller", index, "ps", hex(ps), "pin0", ps&PSPIN0 != 0, "pinchg", ps&PSPINCHG != 0)
	s.dumpRegisters(regs, "postcfg")

	s.setClock(regs, s.cfg.IdentClockKHz)

	if _, err := s.command(regs, CmdGoIdle, 0); err != nil {
		return checkpoint.Tag(err, StageCMD0)
	}
	// Some cards only react to a second CMD0 once the clock is stable.
	s.cfg.Delayer.Delay(5 * time.Millisecond)
	_, _ = s.command(regs, CmdGoIdle, 0)

	// Internal power up before CMD8.
	s.cfg.Delayer.Delay(10 * time.Millisecond)
	resp, err := s.command(regs, CmdSendIfCond, IfCondPattern)
	v2 := err == nil && resp[0]&0xFFF == IfCondPattern
	s.log.Debug("Interface condition", "res0", hex(resp[0]), "v2", v2, "err", err)

	if err := s.negotiate(regs, v2); err != nil {
		return err
	}

	resp, err = s.command(regs, CmdAllSendCID, 0)
	if err != nil {
		return checkpoint.Tag(err, StageCMD2)
	}
	s.log.Debug("Card identification", "mid", fmt.Sprintf("%02X", resp[3]>>24))

	resp, err = s.command(regs, CmdSendRelAddr, 0)
	if err != nil {
		return checkpoint.Tag(err, StageCMD3)
	}
	s.rca = uint16(resp[0] >> 16)
	s.log.Debug("Relative card address", "rca", fmt.Sprintf("%04X", s.rca))

	// The capacity is informational only, failures do not end the probe.
	resp, err = s.command(regs, CmdSendCSD, uint32(s.rca)<<16)
	if err == nil {
		csd, err := ParseCSD(resp)
		if err != nil {
			s.log.Warn("Unknown capacity", "structure", csd.Structure, "err", err)
		} else {
			s.capacity = csd.Capacity
			s.log.Debug("Capacity", "structure", csd.Structure, "c_size", csd.CSize, "bytes", csd.Capacity)
		}
	}

	if _, err := s.command(regs, CmdSelectCard, uint32(s.rca)<<16); err != nil {
		return checkpoint.Tag(err, StageCMD7)
	}

	s.setClock(regs, s.cfg.OperatingClockKHz)
	return nil
}

// negotiate runs the ACMD41 loop and sets the card type once the card
// reports power up done.
func (s *Session) negotiate(regs Registers, v2 bool) error {
	arg := uint32(OpCondSDSC)
	if v2 {
		arg = OpCondHCS
	}

	for i := 0; i < s.cfg.OpCondRetries; i++ {
		resp, err := s.appCommand(regs, AppCmdSendOpCond, arg)
		if err != nil {
			return checkpoint.Tag(err, StageOpCondLoop)
		}

		ocr := resp[0]
		s.log.Debug("Operating condition", "ocr", hex(ocr), "ready", ocr&ocrReady != 0, "ccs", ocr&ocrCCS != 0, "attempt", i)
		if ocr&ocrReady != 0 {
			s.cardType = CardSDSC
			if ocr&ocrCCS != 0 {
				s.cardType = CardSDHC
			}
			return nil
		}

		s.cfg.Delayer.Delay(s.cfg.OpCondInterval)
	}

	return checkpoint.Tag(checkpoint.Wrap(fmt.Errorf("card still busy after %d attempts", s.cfg.OpCondRetries), ErrHardwareTimeout), StageOpCondTimeout)
}

func (s *Session) powerUp(index int) {
	s.cfg.Platform.EnableRootClock()
	s.cfg.Delayer.Delay(5 * time.Millisecond)
	s.cfg.Platform.PowerOn(index)
	s.cfg.Delayer.Delay(21 * time.Millisecond)
	s.cfg.Platform.RoutePins(index)
}

// reset resets the controller core. The reset bit may clear asynchronously
// later, so a timeout is only logged.
func (s *Session) reset(regs Registers) {
	setBits(regs, RegCFG, CFGRST|CFGMSDC)
	if !s.waitResetDone(regs) {
		s.log.Warn("Controller reset did not finish", "cfg", hex(regs.Read32(RegCFG)))
	}
}

func (s *Session) configure(regs Registers) {
	regs.Write32(RegCFG, CFGMSDC|CFGVDDPD|CFGPINEN|CFGRCDEN|CFGFifoThreshold(1))
	regs.Write32(RegIOCON1, IOCON1Default)
	setBits(regs, RegIOCON, IOCONSampleOn)
	regs.Write32(RegSDCCFG, SDCCFGDefault)
	s.resetFIFO(regs)
}

func (s *Session) resetFIFO(regs Registers) {
	setBits(regs, RegCFG, CFGRST)
	s.waitResetDone(regs)
}

func (s *Session) waitResetDone(regs Registers) bool {
	dl := newDeadline(s.cfg.Delayer, s.cfg.ResetTimeout, s.cfg.PollStep)
	return dl.until(func() bool {
		return regs.Read32(RegCFG)&CFGRST == 0
	})
}

func (s *Session) dumpRegisters(regs Registers, tag string) {
	s.log.Debug("Registers", "tag", tag,
		"cfg", hex(regs.Read32(RegCFG)),
		"sta", hex(regs.Read32(RegSTA)),
		"int", hex(regs.Read32(RegINT)),
		"ps", hex(regs.Read32(RegPS)),
		"iocon", hex(regs.Read32(RegIOCON)),
		"iocon1", hex(regs.Read32(RegIOCON1)),
		"sdc_cfg", hex(regs.Read32(RegSDCCFG)),
		"datsta", hex(regs.Read32(RegDATSTA)),
	)
}

// ReadBlock reads the 512 byte block lba into buf. The content of buf is
// undefined if an error is returned.
func (s *Session) ReadBlock(lba uint32, buf []byte) error {
	if len(buf) < BlockSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", BlockSize, len(buf))
	}
	if s.cardType == CardNone || s.active == NoController {
		return checkpoint.From(ErrNotInitialized)
	}

	regs := s.controllers[s.active]
	regs.Write32(RegSDCCFG, regs.Read32(RegSDCCFG)&0xFFFF0000|BlockSize)

	// Standard capacity cards are addressed in bytes.
	arg := lba
	if s.cardType == CardSDSC {
		arg = lba * BlockSize
	}
	if _, err := s.command(regs, CmdReadSingle, arg); err != nil {
		return checkpoint.From(err)
	}

	words := 0
	dl := newDeadline(s.cfg.Delayer, s.cfg.DataTimeout, s.cfg.PollStep)
	for words < BlockSize/4 {
		if regs.Read32(RegSTA)&STADRQ != 0 {
			binary.LittleEndian.PutUint32(buf[words*4:], regs.Read32(RegDAT))
			words++
			continue
		}
		if !dl.wait() {
			break
		}
	}

	if words < BlockSize/4 {
		s.log.Warn("Block read timeout",
			"lba", lba, "remaining", BlockSize/4-words, "sta", hex(regs.Read32(RegSTA)), "datsta", hex(regs.Read32(RegDATSTA)))
		s.resetFIFO(regs)
		setBits(regs, RegSTA, STAFIFOCLR)
		return checkpoint.Wrap(fmt.Errorf("block %d: %d of %d words missing", lba, BlockSize/4-words, BlockSize/4), ErrHardwareTimeout)
	}

	setBits(regs, RegSTA, STAFIFOCLR)
	s.resetFIFO(regs)
	return nil
}

// ReadBlock0 reads the first block of the card.
func (s *Session) ReadBlock0(buf []byte) error {
	return s.ReadBlock(0, buf)
}

// CardType returns the type of the initialized card, or CardNone.
func (s *Session) CardType() CardType {
	return s.cardType
}

// RCA returns the relative card address assigned during identification.
func (s *Session) RCA() uint16 {
	return s.rca
}

// ActiveController returns the index of the controller the card was found
// on, or NoController.
func (s *Session) ActiveController() int {
	return s.active
}

// CapacityBytes returns the capacity decoded from the CSD, 0 if unknown.
func (s *Session) CapacityBytes() uint64 {
	return s.capacity
}

// CapacityMB returns the capacity in MiB, 0 if unknown.
func (s *Session) CapacityMB() uint32 {
	return uint32(s.capacity / (1024 * 1024))
}

// LastFailureStage returns the stage the last probe failed at. It is empty
// after a successful Init.
func (s *Session) LastFailureStage() string {
	return s.lastStage
}

// CardDetectRaw returns the MSDC_PS register of the active controller, 0 if
// there is none.
func (s *Session) CardDetectRaw() uint32 {
	if s.active == NoController {
		return 0
	}
	return s.controllers[s.active].Read32(RegPS)
}
