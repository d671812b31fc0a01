package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/aligator/sdfat/internal/fatimage"
)

type rootParameters struct {
	Dest string `short:"d" long:"dest" description:"Directory the images are written to" default:"testdata"`
}

var (
	rootArguments = new(rootParameters)
)

// images are the sample cards. Each one is a few sectors of data in an
// otherwise sparse 64 MiB file.
var images = map[string]fatimage.Builder{
	"partitioned.img": {
		PartitionLBA: 2048,
		Label:        "SDCARD",
		Entries: []fatimage.Entry{
			{Name: "README.TXT", Data: []byte("Hello from the SD card!\r\n")},
			{Name: "LOG", Attr: fatimage.AttrDirectory},
			{Name: "DATA.BIN", Data: bytes.Repeat([]byte("0123456789abcdef"), 4096)},
		},
	},
	"raw.img": {
		SectorsPerCluster: 1,
		Label:             "NOPART",
		Entries: []fatimage.Entry{
			{Name: "CONFIG.INI", Data: []byte("[device]\r\nname=mt6261\r\n")},
		},
	},
	"fragmented.img": {
		PartitionLBA:      63,
		PartitionType:     0x0B,
		SectorsPerCluster: 1,
		RootChain:         []uint32{2, 40, 7},
		Entries: []fatimage.Entry{
			{Name: "FRAG.BIN", Data: bytes.Repeat([]byte{0xA5, 0x5A}, 1024), Chain: []uint32{100, 11, 300, 12}},
			{Name: "SHORT.BIN", Data: bytes.Repeat([]byte{0x42}, 2048), Chain: []uint32{50}},
		},
	},
}

// main writes the sample images. Can be executed using 'go generate' from the project root.
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

	fs := afero.NewOsFs()
	err = fs.MkdirAll(rootArguments.Dest, 0o755)
	log.PanicIf(err)

	for name, b := range images {
		img, err := b.Build()
		log.PanicIf(err)

		fpath := filepath.Join(rootArguments.Dest, name)
		outFile, err := fs.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		log.PanicIf(err)

		err = img.WriteTo(outFile)

		// Close the file without defer to close before next iteration of loop
		outFile.Close()

		log.PanicIf(err)
	}
}
