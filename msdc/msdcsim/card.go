// Package msdcsim simulates an MSDC host controller register window with an
// SD card behind it. The card is backed by a raw image, so a Session driving
// the simulator can be mounted like a real card.
package msdcsim

import (
	"io"

	"github.com/spf13/afero"
)

// Card states of the SD identification and data transfer modes.
type cardState int

const (
	stateIdle cardState = iota
	stateReady
	stateIdent
	stateStandby
	stateTransfer
)

type cardConfig struct {
	highCapacity bool
	version1     bool
	csdStructure int
	busyPolls    int
	neverReady   bool
	rca          uint16
	mid          byte
	timeoutCmds  map[uint8]bool
	crcCmds      map[uint8]bool
	dataStall    bool
}

// CardOption configures a Card.
type CardOption func(*cardConfig)

// WithStandardCapacity simulates an SDSC card which is addressed in bytes.
func WithStandardCapacity() CardOption {
	return func(c *cardConfig) {
		c.highCapacity = false
	}
}

// WithVersion1 simulates a version 1.x card, which does not answer CMD8 and
// always has standard capacity.
func WithVersion1() CardOption {
	return func(c *cardConfig) {
		c.version1 = true
		c.highCapacity = false
	}
}

// WithCSDStructure forces the CSD structure field, e.g. 2 for a reserved version.
func WithCSDStructure(structure int) CardOption {
	return func(c *cardConfig) {
		c.csdStructure = structure
	}
}

// WithBusyPolls makes ACMD41 report busy n times before the card is ready.
func WithBusyPolls(n int) CardOption {
	return func(c *cardConfig) {
		c.busyPolls = n
	}
}

// WithNeverReady makes the card report busy on every ACMD41.
func WithNeverReady() CardOption {
	return func(c *cardConfig) {
		c.neverReady = true
	}
}

// WithRCA sets the relative card address published by CMD3.
func WithRCA(rca uint16) CardOption {
	return func(c *cardConfig) {
		c.rca = rca
	}
}

// WithManufacturerID sets the MID field of the CID.
func WithManufacturerID(mid byte) CardOption {
	return func(c *cardConfig) {
		c.mid = mid
	}
}

// WithCommandTimeout makes the card never answer the command index.
func WithCommandTimeout(index uint8) CardOption {
	return func(c *cardConfig) {
		c.timeoutCmds[index] = true
	}
}

// WithCRCError makes every response to the command index fail its CRC check.
func WithCRCError(index uint8) CardOption {
	return func(c *cardConfig) {
		c.crcCmds[index] = true
	}
}

// WithDataStall accepts reads but never delivers the data.
func WithDataStall() CardOption {
	return func(c *cardConfig) {
		c.dataStall = true
	}
}

// Card is a simulated SD card.
type Card struct {
	image  io.ReaderAt
	size   int64
	closer io.Closer
	cfg    cardConfig

	state      cardState
	appCmd     bool
	opCondSeen int
}

// NewCard simulates a card holding image, which is size bytes long.
// Cards are high capacity unless configured otherwise.
func NewCard(image io.ReaderAt, size int64, opts ...CardOption) *Card {
	cfg := cardConfig{
		highCapacity: true,
		csdStructure: -1,
		rca:          0xB368,
		mid:          0x03,
		timeoutCmds:  make(map[uint8]bool),
		crcCmds:      make(map[uint8]bool),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Card{image: image, size: size, cfg: cfg}
}

// OpenCard simulates a card holding the image file at path.
func OpenCard(fs afero.Fs, path string, opts ...CardOption) (*Card, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	card := NewCard(f, info.Size(), opts...)
	card.closer = f
	return card, nil
}

// Close closes the image if the card opened it.
func (c *Card) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

// SetDataStall switches WithDataStall on or off.
func (c *Card) SetDataStall(stall bool) {
	c.cfg.dataStall = stall
}

// HighCapacity reports whether the card uses block addressing.
func (c *Card) HighCapacity() bool {
	return c.cfg.highCapacity
}

// response is the answer of the card to one command.
type response struct {
	timeout bool
	crc     bool
	res     [4]uint32
	data    []byte
}

// handle runs one command through the card state machine.
func (c *Card) handle(index uint8, arg uint32) response {
	app := c.appCmd
	c.appCmd = false

	if c.cfg.timeoutCmds[index] {
		return response{timeout: true}
	}

	var r response
	switch {
	case index == 0:
		c.state = stateIdle
		c.opCondSeen = 0

	case index == 8:
		if c.cfg.version1 {
			return response{timeout: true}
		}
		r.res[0] = arg & 0xFFF

	case index == 55:
		c.appCmd = true
		// R1 with APP_CMD set.
		r.res[0] = 0x120

	case index == 41 && app:
		if c.state != stateIdle && c.state != stateReady {
			return response{timeout: true}
		}
		c.opCondSeen++
		r.res[0] = 0x00FF8000
		// A high capacity card stays busy for a host without HCS support.
		hcs := arg&(1<<30) != 0
		if c.cfg.neverReady || c.opCondSeen <= c.cfg.busyPolls || (c.cfg.highCapacity && !hcs) {
			break
		}
		r.res[0] |= 1 << 31
		if c.cfg.highCapacity {
			r.res[0] |= 1 << 30
		}
		c.state = stateReady

	case index == 2:
		if c.state != stateReady {
			return response{timeout: true}
		}
		c.state = stateIdent
		r.res = [4]uint32{0x8E000000, 0x00000123, 0x534D3030, uint32(c.cfg.mid)<<24 | 0x5344<<8 | 'S'}

	case index == 3:
		if c.state != stateIdent && c.state != stateStandby {
			return response{timeout: true}
		}
		c.state = stateStandby
		r.res[0] = uint32(c.cfg.rca)<<16 | 0x0500

	case index == 9:
		if c.state != stateStandby || uint16(arg>>16) != c.cfg.rca {
			return response{timeout: true}
		}
		r.res = c.csd()

	case index == 7:
		if uint16(arg>>16) != c.cfg.rca {
			return response{timeout: true}
		}
		c.state = stateTransfer
		r.res[0] = 0x0700

	case index == 17:
		if c.state != stateTransfer {
			return response{timeout: true}
		}
		r.res[0] = 0x0900
		r.data = c.readBlock(arg)

	default:
		return response{timeout: true}
	}

	if c.cfg.crcCmds[index] {
		r.crc = true
	}
	return r
}

func (c *Card) readBlock(arg uint32) []byte {
	if c.cfg.dataStall {
		return nil
	}

	off := int64(arg)
	if c.cfg.highCapacity {
		off *= 512
	} else if arg%512 != 0 {
		// Misaligned byte address.
		return nil
	}

	if off+512 > c.size {
		return nil
	}

	block := make([]byte, 512)
	if n, _ := c.image.ReadAt(block, off); n != len(block) {
		return nil
	}
	return block
}

// csd builds the CSD register for the image size. RES3 holds bits 127..96.
func (c *Card) csd() [4]uint32 {
	var r [4]uint32

	structure := 0
	if c.cfg.highCapacity {
		structure = 1
	}
	if c.cfg.csdStructure >= 0 {
		structure = c.cfg.csdStructure
	}

	switch structure {
	case 0:
		// READ_BL_LEN 9 and C_SIZE_MULT 7 give units of 256 KiB.
		const readBlLen, cSizeMult = 9, 7
		cSize := uint32(c.size/(256*1024)) - 1
		if c.size < 256*1024 {
			cSize = 0
		}
		if cSize > 0xFFF {
			cSize = 0xFFF
		}
		r[2] = readBlLen<<16 | cSize>>2&0x3FF
		r[1] = (cSize&0x3)<<30 | cSizeMult<<15
	case 1:
		cSize := uint32(c.size/(512*1024)) - 1
		if c.size < 512*1024 {
			cSize = 0
		}
		r[2] = cSize >> 16 & 0x3F
		r[1] = (cSize & 0xFFFF) << 16
	}
	r[3] = uint32(structure&0x3) << 30
	return r
}
