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
	Name     string `short:"n" long:"name" description:"Name of the file to retrieve" required:"true"`
	Output   string `short:"o" long:"output" description:"Host file to write (defaults to the stored name)"`
	CRC      bool   `short:"c" long:"crc" description:"Verify the running CRC-32 against the persisted one"`
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

	output := rootArguments.Output
	if output == "" {
		output = rootArguments.Name
	}

	drv, err := diskimage.Open(rootArguments.Filepath, rootArguments.Density)
	log.PanicIf(err)

	mount := jesfs.NewMount(drv, diskimage.DefaultConfig())
	log.PanicIf(mount.Start(jesfs.StartNormal))

	readFlags := jesfs.OpenRead
	if rootArguments.CRC {
		readFlags |= jesfs.OpenCRC
	}

	fd, err := mount.Open(rootArguments.Name, readFlags)
	log.PanicIf(err)

	dst, err := os.Create(output)
	log.PanicIf(err)
	defer dst.Close()

	buf := make([]byte, 4096)
	var total int64
	for {
		n, rerr := fd.Read(buf)
		log.PanicIf(rerr)
		if n == 0 {
			break
		}
		_, werr := dst.Write(buf[:n])
		log.PanicIf(werr)
		total += int64(n)
	}

	running := fd.CRC32()
	persisted, err := fd.GetCRC32()
	log.PanicIf(err)
	log.PanicIf(fd.Close())

	fmt.Printf("read %d bytes into %q\n", total, output)
	if rootArguments.CRC {
		fmt.Printf("persisted crc32=%08X running crc32=%08X\n", persisted, running)
		if running != persisted {
			fmt.Println("WARNING: running CRC-32 does not match the persisted value")
			os.Exit(1)
		}
	}
}
