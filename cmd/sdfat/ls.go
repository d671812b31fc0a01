package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/aligator/sdfat"
)

type listCommand struct {
	Pattern string `short:"p" long:"pattern" description:"Filename filter"`
	Detail  bool   `short:"d" long:"detail" description:"Show the modification time"`
}

func (cmd *listCommand) Execute(args []string) error {
	c, err := openCard()
	if err != nil {
		return err
	}
	defer c.Close()

	return c.vol.ListRoot(func(entry sdfat.DirEntry) error {
		if entry.IsVolumeLabel() {
			return nil
		}

		if cmd.Pattern != "" {
			isMatched, err := filepath.Match(cmd.Pattern, entry.Name)
			if err != nil {
				return err
			}
			if !isMatched {
				return nil
			}
		}

		kind := "F"
		if entry.IsDir() {
			kind = "D"
		}

		if cmd.Detail {
			fmt.Printf("%s %15s %08X %30s %s\n", kind, humanize.Comma(int64(entry.Size)), entry.FirstCluster, entry.FileInfo().ModTime(), entry.Name)
		} else {
			fmt.Printf("%s %15s %08X %s\n", kind, humanize.Comma(int64(entry.Size)), entry.FirstCluster, entry.Name)
		}
		return nil
	})
}
