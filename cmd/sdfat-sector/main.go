// Command sdfat-sector dumps single sectors of a card image and decodes the
// partition table and boot sector.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/go-restruct/restruct"
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/aligator/sdfat"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"File-path of the card image" required:"true"`
	LBA      uint32 `short:"l" long:"lba" description:"Sector to dump"`
	Count    int    `short:"n" long:"count" description:"Number of sectors to dump" default:"1"`
	Boot     bool   `short:"b" long:"boot" description:"Decode the partition table and the boot sector instead"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	img, err := sdfat.OpenImage(afero.NewOsFs(), rootArguments.Filepath)
	log.PanicIf(err)

	defer img.Close()

	if rootArguments.Boot == true {
		dumpBoot(img)
		return
	}

	buf := make([]byte, 512)
	for i := 0; i < rootArguments.Count; i++ {
		lba := rootArguments.LBA + uint32(i)

		err := img.ReadBlock(lba, buf)
		log.PanicIf(err)

		fmt.Printf("## LBA %d (offset %s)\n", lba, humanize.Comma(int64(lba)*512))
		fmt.Printf("\n")
		fmt.Print(hex.Dump(buf))
		fmt.Printf("\n")
	}
}

func dumpBoot(img *sdfat.ImageDevice) {
	fmt.Printf("Image: %s sectors (%s)\n", humanize.Comma(int64(img.SectorCount())), humanize.IBytes(img.SectorCount()*512))
	fmt.Printf("\n")

	buf := make([]byte, 512)
	err := img.ReadBlock(0, buf)
	log.PanicIf(err)

	mbr := sdfat.MBR{}
	err = restruct.Unpack(buf, binary.LittleEndian, &mbr)
	log.PanicIf(err)

	fmt.Printf("[Sector 0]\n")
	fmt.Printf("\n")
	fmt.Printf("Signature: 0x%04X\n", mbr.Signature)
	for i, pe := range mbr.Partitions {
		fmt.Printf("Partition %d: status 0x%02X type 0x%02X start %d sectors %s\n", i, pe.Status, pe.Type, pe.StartLBA, humanize.Comma(int64(pe.Sectors)))
	}
	fmt.Printf("\n")

	bootLBA := uint32(0)
	if t := mbr.Partitions[0].Type; t == 0x0B || t == 0x0C {
		bootLBA = mbr.Partitions[0].StartLBA
		err = img.ReadBlock(bootLBA, buf)
		log.PanicIf(err)
	}

	bpb := sdfat.BPB{}
	err = restruct.Unpack(buf, binary.LittleEndian, &bpb)
	log.PanicIf(err)

	fat32 := sdfat.FAT32SpecificData{}
	err = restruct.Unpack(bpb.FATSpecificData[:], binary.LittleEndian, &fat32)
	log.PanicIf(err)

	fmt.Printf("[Boot sector at LBA %d]\n", bootLBA)
	fmt.Printf("\n")
	fmt.Printf("OEM name:            %s\n", strings.TrimRight(string(bpb.BSOEMName[:]), " \x00"))
	fmt.Printf("Bytes per sector:    %d\n", bpb.BytesPerSector)
	fmt.Printf("Sectors per cluster: %d\n", bpb.SectorsPerCluster)
	fmt.Printf("Reserved sectors:    %d\n", bpb.ReservedSectorCount)
	fmt.Printf("FATs:                %d\n", bpb.NumFATs)
	fmt.Printf("Total sectors 16/32: %d / %d\n", bpb.TotalSectors16, bpb.TotalSectors32)
	fmt.Printf("FAT size 16/32:      %d / %d\n", bpb.FATSize16, fat32.FatSize)
	fmt.Printf("Hidden sectors:      %d\n", bpb.HiddenSectors)
	fmt.Printf("Root cluster:        %d\n", fat32.RootCluster)
	fmt.Printf("Volume ID:           %08X\n", fat32.BSVolumeID)
	fmt.Printf("Volume label:        %s\n", strings.TrimRight(string(fat32.BSVolumeLabel[:]), " \x00"))
	fmt.Printf("File system type:    %s\n", strings.TrimRight(string(fat32.BSFileSystemType[:]), " \x00"))
}
