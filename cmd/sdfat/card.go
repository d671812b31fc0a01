package main

import (
	"fmt"
	"io"

	gologrus "github.com/fclairamb/go-log/logrus"
	"github.com/spf13/afero"

	"github.com/aligator/sdfat"
	"github.com/aligator/sdfat/msdc"
	"github.com/aligator/sdfat/msdc/msdcsim"
)

// card is the mounted image together with the session it was read through.
type card struct {
	vol     *sdfat.Volume
	session *msdc.Session
	closer  io.Closer
}

func (c *card) Close() error {
	return c.closer.Close()
}

// openCard mounts the image given on the command line.
func openCard() (*card, error) {
	log := gologrus.NewWrap(logger)
	osFs := afero.NewOsFs()

	if rootArguments.Raw {
		img, err := sdfat.OpenImage(osFs, rootArguments.Image)
		if err != nil {
			return nil, err
		}

		vol, err := sdfat.Mount(img, sdfat.WithLogger(log))
		if err != nil {
			img.Close()
			return nil, err
		}
		return &card{vol: vol, closer: img}, nil
	}

	var opts []msdcsim.CardOption
	if rootArguments.Standard {
		opts = append(opts, msdcsim.WithStandardCapacity())
	}
	sim, err := msdcsim.OpenCard(osFs, rootArguments.Image, opts...)
	if err != nil {
		return nil, err
	}

	// Both slots exist, the card sits in one of them.
	slots := []msdc.Registers{msdcsim.NewController(nil), msdcsim.NewController(nil)}
	switch rootArguments.Slot {
	case 0, 1:
		slots[rootArguments.Slot] = msdcsim.NewController(sim)
	default:
		sim.Close()
		return nil, fmt.Errorf("invalid slot %d", rootArguments.Slot)
	}

	session := msdc.New(slots, msdc.WithLogger(log.With("component", "msdc")))
	if err := session.Init(); err != nil {
		sim.Close()
		return nil, fmt.Errorf("card init failed at stage %q: %w", session.LastFailureStage(), err)
	}

	vol, err := sdfat.Mount(session, sdfat.WithLogger(log.With("component", "fat32")))
	if err != nil {
		sim.Close()
		return nil, err
	}
	return &card{vol: vol, session: session, closer: sim}, nil
}
