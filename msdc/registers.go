package msdc

// Registers is the 32 bit register window of one MSDC host controller.
// Offsets are relative to the controller base address.
//
// Generated mock using mockgen:
//
//	mockgen -source=registers.go -destination=registers_mock.go -package msdc
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Base addresses of the two host controllers of the MT6261.
// The session indexes them as controller 0 and 1.
const (
	MSDC0Base = 0xA0130000
	MSDC2Base = 0xA0270000
)

// Register offsets.
const (
	RegCFG     = 0x00
	RegSTA     = 0x04
	RegINT     = 0x08
	RegPS      = 0x0C
	RegDAT     = 0x10
	RegIOCON   = 0x14
	RegIOCON1  = 0x18
	RegSDCCFG  = 0x20
	RegSDCCMD  = 0x24
	RegSDCARG  = 0x28
	RegSDCSTA  = 0x2C
	RegRES0    = 0x30
	RegRES1    = 0x34
	RegRES2    = 0x38
	RegRES3    = 0x3C
	RegCMDSTA  = 0x40
	RegDATSTA  = 0x44

	// RegistersEnd is the size of the register window.
	RegistersEnd = 0x48
)

// MSDC_CFG bits.
const (
	CFGMSDC      = 1 << 0
	CFGRST       = 1 << 1
	CFGClkSrcPos = 3
	CFGClkSrcMsk = 3 << CFGClkSrcPos
	CFGSCKON     = 1 << 7
	CFGSclkfPos  = 8
	CFGSclkfMsk  = 0xFF << CFGSclkfPos
	CFGPINEN     = 1 << 18
	CFGRCDEN     = 1 << 20
	CFGVDDPD     = 1 << 21
)

// CFGFifoThreshold encodes the FIFO threshold field.
func CFGFifoThreshold(x uint32) uint32 {
	return (x & 0xF) << 24
}

// MSDC_STA bits.
const (
	STADRQ     = 1 << 2
	STAFIFOCLR = 1 << 14
	STABUSY    = 1 << 15
)

// MSDC_PS bits.
const (
	PSCDEN   = 1 << 0
	PSPIEN0  = 1 << 1
	PSPIN0   = 1 << 3
	PSPINCHG = 1 << 4
)

// SDC_CMDSTA bits. The register clears on read.
const (
	CMDSTACMDRDY    = 1 << 0
	CMDSTACMDTO     = 1 << 1
	CMDSTARSPCRCERR = 1 << 2
)

const (
	// IOCONSampleOn samples the command and data lines on the rising edge.
	IOCONSampleOn = 1 << 21
	// IOCON1Default is the drive strength baseline for all pads.
	IOCON1Default = 0x00022222

	// SDCCFGInterruptEnable enables the SD controller interrupt.
	SDCCFGInterruptEnable = 1 << 0
	// SDCCFGDefault sets the bus timeout in the high word plus the block length.
	SDCCFGDefault = 0x50018000 | BlockSize | SDCCFGInterruptEnable
)

func setBits(regs Registers, offset, bits uint32) {
	regs.Write32(offset, regs.Read32(offset)|bits)
}

func clearBits(regs Registers, offset, bits uint32) {
	regs.Write32(offset, regs.Read32(offset)&^bits)
}
