package sdfat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/aligator/sdfat/checkpoint"
)

// DirEntry is a short (8.3) directory entry as reported by ListDirectory.
type DirEntry struct {
	// Name is "NAME" or "NAME.EXT" without padding.
	Name         string
	Attribute    byte
	FirstCluster uint32
	Size         uint32

	header EntryHeader
}

func (e DirEntry) IsDir() bool {
	return e.Attribute&AttrDirectory == AttrDirectory
}

func (e DirEntry) IsVolumeLabel() bool {
	return e.Attribute&AttrVolumeLabel == AttrVolumeLabel
}

// DirEntryFunc is called for each entry of a directory. Returning an error
// stops the walk and ListDirectory returns that error.
type DirEntryFunc func(entry DirEntry) error

// errStopWalk ends walkDirectory without an error.
var errStopWalk = errors.New("stop walk")

// ListDirectory walks the cluster chain starting at startCluster and reports
// every short name entry. Long name and deleted entries are skipped and the
// first entry starting with 0x00 ends the whole directory.
func (v *Volume) ListDirectory(startCluster uint32, fn DirEntryFunc) error {
	err := v.walkDirectory(startCluster, func(raw []byte) error {
		if raw[11] == AttrLongName {
			return nil
		}

		entry, err := parseEntry(raw)
		if err != nil {
			return err
		}
		return fn(entry)
	})
	return checkpoint.Wrap(err, ErrReadDir)
}

// ListRoot lists the root directory.
func (v *Volume) ListRoot(fn DirEntryFunc) error {
	return v.ListDirectory(v.info.RootCluster, fn)
}

// Open looks up name in the root directory. name must be an exact upper case
// 8.3 name like "README.TXT". Directories and the volume label never match.
func (v *Volume) Open(name string) (*File, error) {
	var found *File
	err := v.walkDirectory(v.info.RootCluster, func(raw []byte) error {
		attr := raw[11]
		if attr&AttrVolumeLabel != 0 || attr&AttrDirectory != 0 {
			return nil
		}
		if formatShortName(raw[:11]) != name {
			return nil
		}

		entry, err := parseEntry(raw)
		if err != nil {
			return err
		}
		found = newFile(v, entry)
		return errStopWalk
	})
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}
	if found == nil {
		return nil, checkpoint.Wrap(errors.New(name), ErrNotFound)
	}

	return found, nil
}

// walkDirectory calls visit with every 32 byte slot which is neither deleted
// nor behind the end of directory marker.
func (v *Volume) walkDirectory(startCluster uint32, visit func(raw []byte) error) error {
	spc := uint32(v.info.SectorsPerCluster)

	// A chain can not be longer than the number of clusters, anything
	// longer loops.
	steps := uint32(0)
	for cluster := fatEntry(startCluster); cluster.IsNextCluster(); {
		if steps == v.info.TotalClusters {
			return checkpoint.Wrap(fmt.Errorf("cluster chain from %d loops", startCluster), ErrUnsupportedMedia)
		}
		steps++

		if err := v.checkCluster(uint32(cluster)); err != nil {
			return err
		}

		first := v.clusterLBA(uint32(cluster))
		for s := uint32(0); s < spc; s++ {
			for off := 0; off < sectorSize; off += dirEntrySize {
				// visit may not touch the staging buffer, but make sure the
				// sector is (still) loaded anyway.
				if err := v.fetch(first + s); err != nil {
					return checkpoint.From(err)
				}

				raw := v.sector.buffer[off : off+dirEntrySize]
				switch raw[0] {
				case entryEndOfDirectory:
					return nil
				case entryDeleted:
					continue
				}

				if err := visit(raw); err != nil {
					if err == errStopWalk {
						return nil
					}
					return err
				}
			}
		}

		next, err := v.nextCluster(uint32(cluster))
		if err != nil {
			return checkpoint.From(err)
		}
		cluster = next
	}

	return nil
}

func parseEntry(raw []byte) (DirEntry, error) {
	header := EntryHeader{}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &header); err != nil {
		return DirEntry{}, checkpoint.From(err)
	}

	return DirEntry{
		Name:         formatShortName(header.Name[:]),
		Attribute:    header.Attribute,
		FirstCluster: uint32(header.FirstClusterHI)<<16 | uint32(header.FirstClusterLO),
		Size:         header.FileSize,
		header:       header,
	}, nil
}

// formatShortName turns the 11 raw name bytes into "NAME.EXT".
// The dot is only added if there is an extension.
func formatShortName(raw []byte) string {
	name := strings.TrimRight(string(raw[:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")

	if ext != "" {
		name += "."
	}

	return name + ext
}
