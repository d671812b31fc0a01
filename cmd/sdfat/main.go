// Command sdfat mounts a FAT32 card image and lists, reads or exports its
// root directory. By default the image is read through the simulated MSDC
// controller, so the same code path as on the device is used.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type rootParameters struct {
	Image    string `short:"f" long:"image" description:"File-path of the card image" required:"true"`
	Raw      bool   `long:"raw" description:"Read the image directly instead of through the simulated controller"`
	Standard bool   `long:"sdsc" description:"Simulate a standard capacity (byte addressed) card"`
	Slot     int    `long:"slot" description:"Controller slot of the simulated card" default:"0"`
	Verbose  bool   `short:"v" long:"verbose" description:"Log every controller command"`

	Info        infoCommand        `command:"info" description:"Print card and volume information"`
	List        listCommand        `command:"ls" description:"List the root directory"`
	Cat         catCommand         `command:"cat" description:"Write a file of the root directory to stdout"`
	ServeWebDAV serveWebDAVCommand `command:"serve-webdav" description:"Export the root directory read-only over WebDAV"`
	ServeFTP    serveFTPCommand    `command:"serve-ftp" description:"Export the root directory read-only over FTP"`
}

var (
	rootArguments = new(rootParameters)
	logger        = logrus.New()
)

func main() {
	p := flags.NewParser(rootArguments, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if rootArguments.Verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		return command.Execute(args)
	}

	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
}
