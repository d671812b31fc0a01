package sdfat

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/aligator/sdfat/internal/fatimage"
)

func TestImageDevice(t *testing.T) {
	img := mustBuild(t, fatimage.Builder{
		TotalSectors:      8 * 1024 * 1024 / 512,
		SectorsPerCluster: 1,
		PartitionLBA:      64,
		Entries: []fatimage.Entry{
			{Name: "README.TXT", Data: []byte("Hello World")},
		},
	})

	mem := afero.NewMemMapFs()
	out, err := mem.Create("card.img")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := img.WriteTo(out); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	out.Close()

	dev, err := OpenImage(mem, "card.img")
	if err != nil {
		t.Fatalf("OpenImage() error = %v", err)
	}
	defer dev.Close()

	if got, want := dev.SectorCount(), uint64(img.TotalSectors()); got != want {
		t.Errorf("SectorCount() = %v, want %v", got, want)
	}

	buf := make([]byte, 512)
	want := make([]byte, 512)
	for _, lba := range []uint32{0, 64, img.Layout.FATBegin, img.Layout.DataBegin} {
		if err := dev.ReadBlock(lba, buf); err != nil {
			t.Fatalf("ReadBlock(%d) error = %v", lba, err)
		}
		if err := img.ReadBlock(lba, want); err != nil {
			t.Fatalf("Image.ReadBlock(%d) error = %v", lba, err)
		}
		if !bytes.Equal(buf, want) {
			t.Errorf("ReadBlock(%d) differs from the image", lba)
		}
	}

	if err := dev.ReadBlock(img.TotalSectors(), buf); err == nil {
		t.Errorf("ReadBlock() past the end error = nil")
	}
	if err := dev.ReadBlock(0, make([]byte, 100)); err == nil {
		t.Errorf("ReadBlock() with a short buffer error = nil")
	}

	vol, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	got, err := afero.ReadFile(NewFs(vol), "README.TXT")
	if err != nil || string(got) != "Hello World" {
		t.Errorf("afero.ReadFile() = %q, %v", got, err)
	}
}
