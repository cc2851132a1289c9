package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/jesfs/go-jesfs"
	"github.com/jesfs/go-jesfs/cmd/internal/diskimage"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"Disk image file" required:"true"`
	Density  uint8  `short:"d" long:"density" description:"JEDEC density byte the image was formatted with" default:"19"`
	Name     string `short:"n" long:"name" description:"Name of the file to delete" required:"true"`
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

	drv, err := diskimage.Open(rootArguments.Filepath, rootArguments.Density)
	log.PanicIf(err)

	mount := jesfs.NewMount(drv, diskimage.DefaultConfig())
	log.PanicIf(mount.Start(jesfs.StartNormal))

	fd, err := mount.Open(rootArguments.Name, jesfs.OpenRead)
	log.PanicIf(err)

	log.PanicIf(fd.Delete())
	log.PanicIf(drv.Dump(rootArguments.Filepath))

	fmt.Printf("deleted %q\n", rootArguments.Name)
}
