package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/jesfs/go-jesfs"
	"github.com/jesfs/go-jesfs/cmd/internal/diskimage"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"Disk image file to create" required:"true"`
	Density  uint8  `short:"d" long:"density" description:"JEDEC density byte (0x0D..0x18, size = 1<<density)" default:"19"`
	Soft     bool   `short:"s" long:"soft" description:"Use SOFT mode (only erase sectors that are not fully erased) instead of FULL bulk-erase"`
}

var rootArguments = new(rootParameters)

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

	drv := diskimage.Create(rootArguments.Density)
	mount := jesfs.NewMount(drv, diskimage.DefaultConfig())

	mode := jesfs.FormatFull
	if rootArguments.Soft {
		mode = jesfs.FormatSoft
	}

	err = mount.Format(mode)
	log.PanicIf(err)

	err = drv.Dump(rootArguments.Filepath)
	log.PanicIf(err)

	fmt.Println(mount.Describe())
	fmt.Printf("wrote %s image to %s\n", humanize.Bytes(uint64(1)<<rootArguments.Density), rootArguments.Filepath)
}
