package msdc

import (
	"fmt"

	"github.com/aligator/sdfat/checkpoint"
)

// CSD holds the capacity fields of the card specific data register.
type CSD struct {
	Structure uint32
	CSize     uint32
	// CSizeMult and ReadBlLen are only used by structure version 1.
	CSizeMult uint32
	ReadBlLen uint32

	// Capacity in bytes.
	Capacity uint64
}

// ParseCSD decodes the long CMD9 response. Structure 0 (version 1.0,
// standard capacity) and 1 (version 2.0, high capacity) are supported.
func ParseCSD(r Response) (CSD, error) {
	csd := CSD{Structure: r[3] >> 30 & 0x3}

	switch csd.Structure {
	case 0:
		// C_SIZE is bits 73..62, C_SIZE_MULT 49..47 and READ_BL_LEN 83..80.
		csd.CSize = (r[2]&0x3FF)<<2 | r[1]>>30&0x3
		csd.CSizeMult = r[1] >> 15 & 0x7
		csd.ReadBlLen = r[2] >> 16 & 0xF

		blocks := uint64(csd.CSize+1) << (csd.CSizeMult + 2)
		csd.Capacity = blocks << csd.ReadBlLen
	case 1:
		// C_SIZE is bits 69..48 in units of 512 KiB.
		csd.CSize = (r[2]&0x3F)<<16 | r[1]>>16&0xFFFF
		csd.Capacity = uint64(csd.CSize+1) * 512 * 1024
	default:
		return csd, checkpoint.Wrap(fmt.Errorf("CSD structure %d", csd.Structure), ErrUnsupportedMedia)
	}

	return csd, nil
}
