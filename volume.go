package sdfat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	log "github.com/fclairamb/go-log"
	"github.com/go-restruct/restruct"

	"github.com/aligator/sdfat/checkpoint"
)

// BlockDevice is the single sector read primitive a volume is mounted from.
// msdc.Session and ImageDevice implement it.
type BlockDevice interface {
	// ReadBlock reads the 512 byte sector lba into buf.
	// buf content is undefined if an error is returned.
	ReadBlock(lba uint32, buf []byte) error
}

// Info contains the geometry of a mounted volume.
type Info struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	RootCluster       uint32
	TotalSectors      uint32
	DataSectors       uint32
	TotalClusters     uint32

	// FATBeginLBA is the first sector of the first FAT.
	FATBeginLBA uint32
	// ClusterBeginLBA is the first sector of cluster 2.
	ClusterBeginLBA uint32

	Label string
}

// ClusterSize returns the size of one cluster in bytes.
func (i Info) ClusterSize() uint32 {
	return uint32(i.SectorsPerCluster) * sectorSize
}

type sector struct {
	current uint32
	buffer  []byte
}

// noSector marks the staging buffer as empty.
const noSector = 0xFFFFFFFF

// Volume is a mounted FAT32 volume. It owns the single sector staging buffer
// used by every read path, so a Volume must not be used from more than one
// goroutine at a time. Fs adds the locking needed for that.
type Volume struct {
	dev    BlockDevice
	info   Info
	sector sector
	log    log.Logger
}

// Mount reads sector 0 of dev and mounts either the first partition (if it is
// of type FAT32) or sector 0 itself as the boot sector.
func Mount(dev BlockDevice, opts ...Option) (*Volume, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &Volume{
		dev: dev,
		sector: sector{
			current: noSector,
			buffer:  make([]byte, sectorSize),
		},
		log: cfg.logger,
	}

	if err := v.mount(); err != nil {
		v.log.Warn("Mount failed", "err", err)
		return nil, err
	}

	v.log.Debug("Mounted volume",
		"fat_begin_lba", v.info.FATBeginLBA,
		"cluster_begin_lba", v.info.ClusterBeginLBA,
		"sectors_per_cluster", v.info.SectorsPerCluster,
		"clusters", v.info.TotalClusters,
		"root_cluster", v.info.RootCluster,
	)
	return v, nil
}

// Info returns the geometry of the volume.
func (v *Volume) Info() Info {
	return v.info
}

func (v *Volume) mount() error {
	if err := v.fetch(0); err != nil {
		return checkpoint.From(err)
	}
	if err := v.checkSignature(0); err != nil {
		return err
	}

	mbr := MBR{}
	if err := restruct.Unpack(v.sector.buffer, binary.LittleEndian, &mbr); err != nil {
		return checkpoint.Wrap(err, ErrUnsupportedMedia)
	}

	// Only the first partition is looked at. Anything that is not FAT32 means
	// sector 0 is the boot sector of an unpartitioned card.
	bpbLBA := uint32(0)
	if t := mbr.Partitions[0].Type; t == partitionTypeLBA || t == partitionTypeCHS {
		bpbLBA = mbr.Partitions[0].StartLBA
		v.log.Debug("Found FAT32 partition", "type", t, "start_lba", bpbLBA, "sectors", mbr.Partitions[0].Sectors)
	}

	if err := v.fetch(bpbLBA); err != nil {
		return checkpoint.From(err)
	}
	if err := v.checkSignature(bpbLBA); err != nil {
		return err
	}

	bpb := BPB{}
	if err := binary.Read(bytes.NewReader(v.sector.buffer), binary.LittleEndian, &bpb); err != nil {
		return checkpoint.Wrap(err, ErrUnsupportedMedia)
	}
	fat32 := FAT32SpecificData{}
	if err := binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &fat32); err != nil {
		return checkpoint.Wrap(err, ErrUnsupportedMedia)
	}

	// Only 512 byte sectors are supported.
	if bpb.BytesPerSector != sectorSize {
		return checkpoint.Wrap(fmt.Errorf("invalid sector size %d", bpb.BytesPerSector), ErrUnsupportedMedia)
	}
	if bpb.SectorsPerCluster == 0 {
		return checkpoint.Wrap(fmt.Errorf("invalid sectors per cluster"), ErrUnsupportedMedia)
	}

	info := Info{
		BytesPerSector:    bpb.BytesPerSector,
		SectorsPerCluster: bpb.SectorsPerCluster,
		ReservedSectors:   bpb.ReservedSectorCount,
		NumFATs:           bpb.NumFATs,
		TotalSectors:      uint32(bpb.TotalSectors16),
		SectorsPerFAT:     uint32(bpb.FATSize16),
		RootCluster:       fat32.RootCluster,
		Label:             strings.TrimRight(string(fat32.BSVolumeLabel[:]), " \x00"),
	}
	if info.TotalSectors == 0 {
		info.TotalSectors = bpb.TotalSectors32
	}
	if info.SectorsPerFAT == 0 {
		info.SectorsPerFAT = fat32.FatSize
	}

	metadata := uint32(info.ReservedSectors) + uint32(info.NumFATs)*info.SectorsPerFAT
	if metadata >= info.TotalSectors {
		return checkpoint.Wrap(fmt.Errorf("FAT region (%d sectors) exceeds the volume (%d sectors)", metadata, info.TotalSectors), ErrUnsupportedMedia)
	}

	info.FATBeginLBA = bpbLBA + uint32(info.ReservedSectors)
	info.ClusterBeginLBA = info.FATBeginLBA + uint32(info.NumFATs)*info.SectorsPerFAT
	info.DataSectors = info.TotalSectors - metadata
	info.TotalClusters = info.DataSectors / uint32(info.SectorsPerCluster)

	v.info = info
	return nil
}

func (v *Volume) checkSignature(lba uint32) error {
	if sig := binary.LittleEndian.Uint16(v.sector.buffer[510:]); sig != bootSignature {
		return checkpoint.Wrap(fmt.Errorf("no boot signature in sector %d: 0x%04X", lba, sig), ErrUnsupportedMedia)
	}
	return nil
}

// fetch loads a specific single sector into the staging buffer.
func (v *Volume) fetch(lba uint32) error {
	// Only load it once.
	if lba == v.sector.current {
		return nil
	}

	if err := v.dev.ReadBlock(lba, v.sector.buffer); err != nil {
		// The buffer content is undefined now.
		v.sector.current = noSector
		v.log.Debug("Sector read failed", "lba", lba, "err", err)
		return err
	}

	v.sector.current = lba
	return nil
}

// clusterLBA returns the first sector of the given data cluster.
func (v *Volume) clusterLBA(cluster uint32) uint32 {
	return v.info.ClusterBeginLBA + (cluster-2)*uint32(v.info.SectorsPerCluster)
}

// checkCluster fails for a cluster number which points behind the data region.
// Data clusters are numbered 2 to TotalClusters+1.
func (v *Volume) checkCluster(cluster uint32) error {
	if cluster > v.info.TotalClusters+1 {
		return checkpoint.Wrap(fmt.Errorf("cluster %d beyond the last cluster %d", cluster, v.info.TotalClusters+1), ErrUnsupportedMedia)
	}
	return nil
}

// nextCluster reads the FAT entry of cluster. A link to a cluster outside the
// data region is an error.
func (v *Volume) nextCluster(cluster uint32) (fatEntry, error) {
	if err := v.checkCluster(cluster); err != nil {
		return 0, err
	}

	offset := cluster * 4
	if err := v.fetch(v.info.FATBeginLBA + offset/sectorSize); err != nil {
		return 0, err
	}

	next := fatEntry(binary.LittleEndian.Uint32(v.sector.buffer[offset%sectorSize:])).masked()
	if next.IsNextCluster() {
		if err := v.checkCluster(uint32(next)); err != nil {
			return 0, err
		}
	}
	return next, nil
}

// fatEntry is a FAT32 table entry. The top 4 bits are reserved.
type fatEntry uint32

const (
	fatEntryMask   fatEntry = 0x0FFFFFFF
	fatEntryBad    fatEntry = 0x0FFFFFF7
	fatEntryEOCMin fatEntry = 0x0FFFFFF8

	// ChainEnd is the value a File's CurrentCluster takes once its chain is exhausted.
	ChainEnd uint32 = 0x0FFFFFFF
)

func (e fatEntry) masked() fatEntry {
	return e & fatEntryMask
}

func (e fatEntry) IsFree() bool {
	return e.masked() == 0
}

func (e fatEntry) IsBad() bool {
	return e.masked() == fatEntryBad
}

func (e fatEntry) IsEOF() bool {
	return e.masked() >= fatEntryEOCMin
}

// IsNextCluster reports whether e points at a data cluster. Everything below
// cluster 2 or in the end-of-chain range ends a walk.
func (e fatEntry) IsNextCluster() bool {
	return e >= 2 && e < fatEntryEOCMin
}

func (e fatEntry) describe() string {
	switch {
	case e.IsFree():
		return "free"
	case e.IsBad():
		return "bad"
	case e.IsEOF():
		return "end of chain"
	case e < 2:
		return "reserved"
	default:
		return "next cluster"
	}
}
