// File model contains the structs which match the direct structures of the FAT32 volume.

package sdfat

// PartitionEntry is one of the four 16 byte slots of the MBR partition table.
type PartitionEntry struct {
	Status   byte
	CHSFirst [3]byte
	Type     byte
	CHSLast  [3]byte
	StartLBA uint32
	Sectors  uint32
}

// MBR is the layout of sector 0 if the card is partitioned.
type MBR struct {
	BootCode   [446]byte
	Partitions [4]PartitionEntry
	Signature  uint16
}

type BPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

type FAT32SpecificData struct {
	FatSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// Offsets and markers used while scanning raw sectors.
const (
	sectorSize       = 512
	dirEntrySize     = 32
	bootSignature    = 0xAA55
	partitionTypeLBA = 0x0C
	partitionTypeCHS = 0x0B

	entryEndOfDirectory = 0x00
	entryDeleted        = 0xE5
)

// Attribute bits of a directory entry.
const (
	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20
	AttrLongName    = 0x0F
)
