package main

import (
	"errors"
	"io"
	"os"

	"github.com/aligator/sdfat"
)

type catCommand struct {
	Offset int64 `short:"o" long:"offset" description:"Start reading at this byte offset"`

	Positional struct {
		Name string `positional-arg-name:"NAME" description:"8.3 name of a file in the root directory"`
	} `positional-args:"yes" required:"yes"`
}

func (cmd *catCommand) Execute(args []string) error {
	c, err := openCard()
	if err != nil {
		return err
	}
	defer c.Close()

	file, err := sdfat.NewFs(c.vol).Open(cmd.Positional.Name)
	if err != nil {
		return err
	}
	defer file.Close()

	if cmd.Offset != 0 {
		if _, err := file.Seek(cmd.Offset, io.SeekStart); err != nil {
			return err
		}
	}

	_, err = io.Copy(os.Stdout, file)
	if errors.Is(err, sdfat.ErrTruncated) {
		logger.Warn("The cluster chain ended before the end of the file")
	}
	return err
}
