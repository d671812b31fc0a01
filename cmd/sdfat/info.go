package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

type infoCommand struct{}

func (infoCommand) Execute(args []string) error {
	c, err := openCard()
	if err != nil {
		return err
	}
	defer c.Close()

	if s := c.session; s != nil {
		fmt.Printf("Card\n")
		fmt.Printf("  type:        %v\n", s.CardType())
		fmt.Printf("  controller:  %d\n", s.ActiveController())
		fmt.Printf("  RCA:         %04X\n", s.RCA())
		fmt.Printf("  capacity:    %s\n", humanize.IBytes(s.CapacityBytes()))
		fmt.Printf("  card detect: 0x%08X\n", s.CardDetectRaw())
		fmt.Printf("\n")
	}

	info := c.vol.Info()
	fmt.Printf("Volume '%s'\n", info.Label)
	fmt.Printf("  bytes per sector:    %d\n", info.BytesPerSector)
	fmt.Printf("  sectors per cluster: %d (%s clusters)\n", info.SectorsPerCluster, humanize.IBytes(uint64(info.ClusterSize())))
	fmt.Printf("  reserved sectors:    %d\n", info.ReservedSectors)
	fmt.Printf("  FATs:                %d x %s sectors\n", info.NumFATs, humanize.Comma(int64(info.SectorsPerFAT)))
	fmt.Printf("  FAT begin:           LBA %d\n", info.FATBeginLBA)
	fmt.Printf("  cluster begin:       LBA %d\n", info.ClusterBeginLBA)
	fmt.Printf("  root cluster:        %d\n", info.RootCluster)
	fmt.Printf("  total sectors:       %s\n", humanize.Comma(int64(info.TotalSectors)))
	fmt.Printf("  clusters:            %s\n", humanize.Comma(int64(info.TotalClusters)))
	fmt.Printf("  size:                %s\n", humanize.IBytes(uint64(info.TotalSectors)*uint64(info.BytesPerSector)))

	return nil
}
