package sdfat

import (
	"fmt"

	"github.com/aligator/sdfat/checkpoint"
)

// File is a read cursor over the cluster chain of an opened root directory file.
//
// Position never exceeds Size. CurrentCluster is the cluster holding the byte
// at Position, or ChainEnd once the chain is exhausted.
type File struct {
	vol   *Volume
	entry DirEntry

	FirstCluster   uint32
	CurrentCluster uint32
	Size           uint32
	Position       uint32
}

func newFile(v *Volume, entry DirEntry) *File {
	return &File{
		vol:            v,
		entry:          entry,
		FirstCluster:   entry.FirstCluster,
		CurrentCluster: entry.FirstCluster,
		Size:           entry.Size,
	}
}

// Entry returns the directory entry the file was opened from.
func (f *File) Entry() DirEntry {
	return f.entry
}

// Read copies up to len(p) bytes starting at Position into p and advances
// Position. It never reads past Size, so at the end of the file it returns 0, nil.
//
// If the cluster chain ends or a sector cannot be read before Size is reached,
// Read returns the bytes copied so far together with ErrTruncated.
func (f *File) Read(p []byte) (int, error) {
	if f.Position >= f.Size {
		return 0, nil
	}

	want := clampLength(len(p), f.Size-f.Position)

	v := f.vol
	clusterSize := v.info.ClusterSize()
	n := 0
	for n < want {
		if !fatEntry(f.CurrentCluster).IsNextCluster() {
			return n, checkpoint.Wrap(fmt.Errorf("no cluster for offset %d of %d", f.Position, f.Size), ErrTruncated)
		}

		if err := v.checkCluster(f.CurrentCluster); err != nil {
			return n, checkpoint.Wrap(err, ErrTruncated)
		}

		sectorInCluster := (f.Position % clusterSize) / sectorSize
		if err := v.fetch(v.clusterLBA(f.CurrentCluster) + sectorInCluster); err != nil {
			return n, checkpoint.Wrap(err, ErrTruncated)
		}

		within := f.Position % sectorSize
		copied := copy(p[n:want], v.sector.buffer[within:])
		n += copied
		f.Position += uint32(copied)

		if f.Position%clusterSize == 0 {
			if err := f.advance(); err != nil {
				return n, err
			}
		}
	}

	return n, nil
}

// clampLength limits a buffer length to the remaining bytes of a file.
func clampLength(n int, remaining uint32) int {
	if uint64(n) > uint64(remaining) {
		return int(remaining)
	}
	return n
}

// advance moves CurrentCluster to the next cluster of the chain after the
// current one has been read completely.
func (f *File) advance() error {
	next, err := f.vol.nextCluster(f.CurrentCluster)
	if err != nil {
		f.CurrentCluster = ChainEnd
		if f.Position < f.Size {
			return checkpoint.Wrap(err, ErrTruncated)
		}
		// Nothing left to read anyway.
		return nil
	}

	if !next.IsNextCluster() {
		if f.Position < f.Size {
			f.vol.log.Warn("Cluster chain ended early",
				"cluster", f.CurrentCluster, "entry", next.describe(), "position", f.Position, "size", f.Size)
		}
		f.CurrentCluster = ChainEnd
		return nil
	}

	f.CurrentCluster = uint32(next)
	return nil
}

// Seek only supports rewinding: pos == 0 moves back to the first byte and any
// other position is ignored. Use SeekTo to move to an arbitrary offset.
func (f *File) Seek(pos uint32) {
	if pos == 0 {
		f.Position = 0
		f.CurrentCluster = f.FirstCluster
	}
}

// SeekTo moves to pos by walking the cluster chain from the first cluster.
// pos may be at most Size. The file is unchanged if an error is returned.
func (f *File) SeekTo(pos uint32) error {
	if pos > f.Size {
		return checkpoint.Wrap(fmt.Errorf("offset %d beyond size %d", pos, f.Size), ErrSeekFile)
	}

	cluster := f.FirstCluster
	skip := pos / f.vol.info.ClusterSize()
	for i := uint32(0); i < skip; i++ {
		next, err := f.vol.nextCluster(cluster)
		if err != nil {
			return checkpoint.Wrap(err, ErrSeekFile)
		}

		if !next.IsNextCluster() {
			// Landing exactly on the end of the last cluster is fine.
			if i == skip-1 && pos == f.Size {
				cluster = ChainEnd
				break
			}
			return checkpoint.Wrap(ErrTruncated, ErrSeekFile)
		}
		cluster = uint32(next)
	}

	f.Position = pos
	f.CurrentCluster = cluster
	return nil
}
