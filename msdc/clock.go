package msdc

import "time"

const (
	// referenceKHz is the MSDC reference clock.
	referenceKHz = 26000
	// clockSource selects the reference for the bus clock divider.
	clockSource = 2
	// clockPulse is how long SCKON stays set after changing the divider.
	clockPulse = 200 * time.Microsecond
)

// clockDivider returns the SCLKF value for a bus clock of at most kHz.
// The bus runs at reference/(4*SCLKF), or at reference/2 for SCLKF 0.
func clockDivider(kHz uint32) uint32 {
	div := (referenceKHz + kHz - 1) / kHz
	if div <= 2 {
		return 0
	}

	sclkf := (div + 3) / 4
	if sclkf == 0 {
		sclkf = 1
	}
	return sclkf
}

// setClock programs the bus clock of regs. kHz == 0 leaves it unchanged.
func (s *Session) setClock(regs Registers, kHz uint32) {
	if kHz == 0 {
		return
	}

	sclkf := clockDivider(kHz)

	cfg := regs.Read32(RegCFG)
	cfg = cfg&^CFGClkSrcMsk | clockSource<<CFGClkSrcPos
	cfg = cfg&^CFGSclkfMsk | sclkf<<CFGSclkfPos&CFGSclkfMsk
	regs.Write32(RegCFG, cfg)

	setBits(regs, RegCFG, CFGSCKON)
	s.cfg.Delayer.Delay(clockPulse)
	clearBits(regs, RegCFG, CFGSCKON)

	s.log.Debug("Bus clock", "khz", kHz, "sclkf", sclkf)
}
