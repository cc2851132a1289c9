package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/jesfs/go-jesfs"
	"github.com/jesfs/go-jesfs/cmd/internal/diskimage"
)

type rootParameters struct {
	Filepath string `short:"f" long:"filepath" description:"Disk image file" required:"true"`
	Density  uint8  `short:"d" long:"density" description:"JEDEC density byte the image was formatted with" default:"19"`
	Source   string `short:"i" long:"input" description:"Host file to read" required:"true"`
	Name     string `short:"n" long:"name" description:"Name to store the file under (defaults to the input's base name)"`
	CRC      bool   `short:"c" long:"crc" description:"Track and persist a running CRC-32"`
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

	name := rootArguments.Name
	if name == "" {
		name = filepath.Base(rootArguments.Source)
	}

	src, err := os.Open(rootArguments.Source)
	log.PanicIf(err)
	defer src.Close()

	drv, err := diskimage.Open(rootArguments.Filepath, rootArguments.Density)
	log.PanicIf(err)

	mount := jesfs.NewMount(drv, diskimage.DefaultConfig())
	log.PanicIf(mount.Start(jesfs.StartNormal))

	flags2 := jesfs.OpenCreate | jesfs.OpenWrite
	if rootArguments.CRC {
		flags2 |= jesfs.OpenCRC
	}

	fd, err := mount.Open(name, flags2)
	log.PanicIf(err)

	buf := make([]byte, 4096)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			log.PanicIf(fd.Write(buf[:n]))
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		log.PanicIf(rerr)
	}

	log.PanicIf(fd.Close())
	log.PanicIf(drv.Dump(rootArguments.Filepath))

	fmt.Printf("wrote %s (%d bytes) as %q\n", rootArguments.Source, total, name)
}
