// Package fatimage builds small synthetic FAT32 images for tests and for the
// generate command. Images are sparse: only sectors that were written take memory.
package fatimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SectorSize is the only sector size the reader supports.
const SectorSize = 512

const (
	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20
	AttrLongName    = 0x0F
)

const endOfChain = 0x0FFFFFFF

// Entry describes one 32 byte slot of the root directory.
type Entry struct {
	// Name is a "NAME.EXT" short name. Raw wins if set.
	Name string
	Raw  *[11]byte
	Attr byte
	Data []byte

	// Size overrides len(Data) in the directory entry if HasSize is set.
	Size    uint32
	HasSize bool

	// Chain pins the clusters the data is written to. Data that does not fit
	// into the chain is dropped, which produces a broken (too short) chain.
	Chain []uint32

	// FirstCluster overrides the first cluster written into the entry.
	FirstCluster uint32
}

// Builder holds the geometry of the image to build. Zero values get FAT32 defaults.
type Builder struct {
	// TotalSectors is the size of the volume (not including sectors before PartitionLBA).
	TotalSectors      uint32
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	BytesPerSector    uint16

	// PartitionLBA > 0 writes an MBR at sector 0 with one partition of PartitionType.
	PartitionLBA  uint32
	PartitionType byte

	// RootChain pins the clusters of the root directory, RootClusters sets a
	// minimum count if the chain is allocated automatically.
	RootChain    []uint32
	RootClusters int

	Label   string
	Entries []Entry

	// Use16BitFields stores total sectors and FAT size in the 16 bit BPB fields.
	Use16BitFields bool
}

// Layout reports where the builder placed things.
type Layout struct {
	VolumeLBA    uint32
	FATBegin     uint32
	FATSectors   uint32
	DataBegin    uint32
	DataSectors  uint32
	Clusters     uint32
	RootCluster  uint32
	ClusterBytes int
	Chains       map[string][]uint32
}

// Image is a sparse in-memory disk.
type Image struct {
	Layout Layout

	sectors map[uint32][]byte
	total   uint32
}

// NewImage returns an empty image of total sectors.
func NewImage(total uint32) *Image {
	return &Image{sectors: make(map[uint32][]byte), total: total}
}

// TotalSectors returns the size of the whole disk in sectors.
func (img *Image) TotalSectors() uint32 {
	return img.total
}

// ReadBlock copies sector lba into buf. Unwritten sectors read as zero.
func (img *Image) ReadBlock(lba uint32, buf []byte) error {
	if len(buf) < SectorSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", SectorSize, len(buf))
	}
	if lba >= img.total {
		return fmt.Errorf("sector %d out of range (%d sectors)", lba, img.total)
	}

	if s, ok := img.sectors[lba]; ok {
		copy(buf, s)
	} else {
		clear(buf[:SectorSize])
	}
	return nil
}

// ReadAt implements io.ReaderAt over the whole disk.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	size := int64(img.total) * SectorSize
	if off >= size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < size {
		lba := uint32(off / SectorSize)
		within := int(off % SectorSize)
		chunk := copy(p[n:], img.sector(lba)[within:])
		n += chunk
		off += int64(chunk)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Sector returns a writable view of sector lba, allocating it on first use.
func (img *Image) Sector(lba uint32) []byte {
	s, ok := img.sectors[lba]
	if !ok {
		s = make([]byte, SectorSize)
		img.sectors[lba] = s
	}
	return s
}

// WriteAt copies p to the disk starting at byte offset off.
func (img *Image) WriteAt(p []byte, off int64) {
	for len(p) > 0 {
		lba := uint32(off / SectorSize)
		within := int(off % SectorSize)
		n := copy(img.Sector(lba)[within:], p)
		p = p[n:]
		off += int64(n)
	}
}

// WriteTo stores the image to w as a flat file of TotalSectors sectors.
func (img *Image) WriteTo(w io.WriterAt) error {
	for lba, s := range img.sectors {
		if _, err := w.WriteAt(s, int64(lba)*SectorSize); err != nil {
			return err
		}
	}

	// Make sure the file has its full size even if the last sector is empty.
	last := img.total - 1
	if _, ok := img.sectors[last]; !ok {
		if _, err := w.WriteAt(make([]byte, SectorSize), int64(last)*SectorSize); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) sector(lba uint32) []byte {
	if s, ok := img.sectors[lba]; ok {
		return s
	}
	return zeroSector[:]
}

var zeroSector [SectorSize]byte

// ShortName converts "NAME.EXT" into the space padded 11 byte directory form.
func ShortName(name string) [11]byte {
	var raw [11]byte
	for i := range raw {
		raw[i] = ' '
	}

	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	copy(raw[:8], base)
	copy(raw[8:], ext)
	return raw
}

func (b Builder) withDefaults() Builder {
	if b.TotalSectors == 0 {
		b.TotalSectors = 64 * 1024 * 1024 / SectorSize
	}
	if b.SectorsPerCluster == 0 {
		b.SectorsPerCluster = 8
	}
	if b.ReservedSectors == 0 {
		b.ReservedSectors = 32
	}
	if b.NumFATs == 0 {
		b.NumFATs = 2
	}
	if b.BytesPerSector == 0 {
		b.BytesPerSector = SectorSize
	}
	if b.PartitionType == 0 {
		b.PartitionType = 0x0C
	}
	if b.RootClusters == 0 {
		b.RootClusters = 1
	}
	return b
}

// Build lays out the volume and returns the finished image.
func (b Builder) Build() (*Image, error) {
	b = b.withDefaults()

	spc := uint32(b.SectorsPerCluster)
	approxClusters := (b.TotalSectors - uint32(b.ReservedSectors)) / spc
	fatSectors := ((approxClusters+2)*4 + SectorSize - 1) / SectorSize

	layout := Layout{
		VolumeLBA:    b.PartitionLBA,
		FATBegin:     b.PartitionLBA + uint32(b.ReservedSectors),
		FATSectors:   fatSectors,
		ClusterBytes: int(spc) * SectorSize,
		Chains:       make(map[string][]uint32),
	}
	layout.DataBegin = layout.FATBegin + uint32(b.NumFATs)*fatSectors
	layout.DataSectors = b.TotalSectors - (uint32(b.ReservedSectors) + uint32(b.NumFATs)*fatSectors)
	layout.Clusters = layout.DataSectors / spc

	img := NewImage(b.PartitionLBA + b.TotalSectors)
	img.Layout = layout

	entries := b.Entries
	if b.Label != "" {
		entries = append([]Entry{{Name: b.Label, Raw: labelName(b.Label), Attr: AttrVolumeLabel}}, entries...)
	}

	alloc := &allocator{next: 2, max: layout.Clusters + 1, used: make(map[uint32]bool)}
	for _, c := range b.RootChain {
		alloc.used[c] = true
	}
	for _, e := range entries {
		for _, c := range e.Chain {
			alloc.used[c] = true
		}
	}

	rootBytes := len(entries) * 32
	rootChain := b.RootChain
	if rootChain == nil {
		count := (rootBytes + layout.ClusterBytes - 1) / layout.ClusterBytes
		if count < b.RootClusters {
			count = b.RootClusters
		}
		var err error
		rootChain, err = alloc.take(count)
		if err != nil {
			return nil, err
		}
	}
	layout.RootCluster = rootChain[0]

	fat := make(map[uint32]uint32)
	fat[0] = 0x0FFFFFF8
	fat[1] = endOfChain
	link(fat, rootChain)

	root := make([]byte, 0, rootBytes)
	for _, e := range entries {
		chain := e.Chain
		if chain == nil && len(e.Data) > 0 {
			count := (len(e.Data) + layout.ClusterBytes - 1) / layout.ClusterBytes
			var err error
			chain, err = alloc.take(count)
			if err != nil {
				return nil, err
			}
		}
		link(fat, chain)
		img.writeChain(layout, chain, e.Data)

		key := e.Name
		if e.Raw != nil && key == "" {
			key = string(e.Raw[:])
		}
		layout.Chains[key] = chain

		root = append(root, dirEntry(e, chain)...)
	}
	img.Layout = layout
	img.writeChain(layout, rootChain, root)

	for i := uint32(0); i < uint32(b.NumFATs); i++ {
		base := layout.FATBegin + i*fatSectors
		for cluster, value := range fat {
			off := int64(base)*SectorSize + int64(cluster)*4
			var v [4]byte
			binary.LittleEndian.PutUint32(v[:], value)
			img.WriteAt(v[:], off)
		}
	}

	b.writeBootSector(img.Sector(b.PartitionLBA), layout)
	if b.PartitionLBA > 0 {
		mbr := img.Sector(0)
		p := mbr[0x1BE:]
		p[4] = b.PartitionType
		binary.LittleEndian.PutUint32(p[8:], b.PartitionLBA)
		binary.LittleEndian.PutUint32(p[12:], b.TotalSectors)
		mbr[510], mbr[511] = 0x55, 0xAA
	}

	return img, nil
}

func (b Builder) writeBootSector(s []byte, layout Layout) {
	copy(s[0:], []byte{0xEB, 0x58, 0x90})
	copy(s[3:], "MSWIN4.1")
	binary.LittleEndian.PutUint16(s[11:], b.BytesPerSector)
	s[13] = b.SectorsPerCluster
	binary.LittleEndian.PutUint16(s[14:], b.ReservedSectors)
	s[16] = b.NumFATs
	s[21] = 0xF8
	binary.LittleEndian.PutUint32(s[28:], b.PartitionLBA)

	if b.Use16BitFields && b.TotalSectors <= 0xFFFF && layout.FATSectors <= 0xFFFF {
		binary.LittleEndian.PutUint16(s[19:], uint16(b.TotalSectors))
		binary.LittleEndian.PutUint16(s[22:], uint16(layout.FATSectors))
	} else {
		binary.LittleEndian.PutUint32(s[32:], b.TotalSectors)
		binary.LittleEndian.PutUint32(s[36:], layout.FATSectors)
	}

	binary.LittleEndian.PutUint32(s[44:], layout.RootCluster)
	binary.LittleEndian.PutUint16(s[48:], 1)
	binary.LittleEndian.PutUint16(s[50:], 6)
	s[66] = 0x29
	label := labelName(b.Label)
	copy(s[71:], label[:])
	copy(s[82:], "FAT32   ")
	s[510], s[511] = 0x55, 0xAA
}

func (img *Image) writeChain(layout Layout, chain []uint32, data []byte) {
	for _, cluster := range chain {
		if len(data) == 0 {
			return
		}
		lba := layout.DataBegin + (cluster-2)*uint32(layout.ClusterBytes/SectorSize)
		n := len(data)
		if n > layout.ClusterBytes {
			n = layout.ClusterBytes
		}
		img.WriteAt(data[:n], int64(lba)*SectorSize)
		data = data[n:]
	}
}

func dirEntry(e Entry, chain []uint32) []byte {
	d := make([]byte, 32)
	if e.Raw != nil {
		copy(d, e.Raw[:])
	} else {
		name := ShortName(e.Name)
		copy(d, name[:])
	}
	d[11] = e.Attr

	first := e.FirstCluster
	if first == 0 && len(chain) > 0 {
		first = chain[0]
	}
	binary.LittleEndian.PutUint16(d[20:], uint16(first>>16))
	binary.LittleEndian.PutUint16(d[26:], uint16(first))

	size := uint32(len(e.Data))
	if e.HasSize {
		size = e.Size
	}
	binary.LittleEndian.PutUint32(d[28:], size)
	return d
}

func labelName(label string) *[11]byte {
	var raw [11]byte
	for i := range raw {
		raw[i] = ' '
	}
	copy(raw[:], strings.ToUpper(label))
	return &raw
}

func link(fat map[uint32]uint32, chain []uint32) {
	for i, c := range chain {
		if i+1 < len(chain) {
			fat[c] = chain[i+1]
		} else {
			fat[c] = endOfChain
		}
	}
}

type allocator struct {
	next uint32
	max  uint32
	used map[uint32]bool
}

var errVolumeFull = errors.New("fatimage: no free clusters left")

func (a *allocator) take(count int) ([]uint32, error) {
	chain := make([]uint32, 0, count)
	for len(chain) < count {
		if a.next > a.max {
			return nil, errVolumeFull
		}
		if !a.used[a.next] {
			a.used[a.next] = true
			chain = append(chain, a.next)
		}
		a.next++
	}
	return chain, nil
}
