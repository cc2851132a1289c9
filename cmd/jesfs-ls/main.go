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
	Filepath string `short:"f" long:"filepath" description:"Disk image file" required:"true"`
	Density  uint8  `short:"d" long:"density" description:"JEDEC density byte the image was formatted with" default:"19"`
	Fast     bool   `short:"F" long:"fast" description:"Mount in FAST mode instead of NORMAL"`
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

	mode := jesfs.StartNormal
	if rootArguments.Fast {
		mode = jesfs.StartFast
	}
	log.PanicIf(mount.Start(mode))

	fmt.Println(mount.Describe())
	fmt.Println()

	for fno := uint16(0); ; fno++ {
		stat, serr := mount.Info(fno)
		log.PanicIf(serr)
		if stat.Status.Has(jesfs.StatEndOfIndex) {
			break
		}

		state := "active"
		if stat.Status.Has(jesfs.StatInactive) {
			state = "deleted"
		}

		length := humanize.Comma(int64(stat.Len))
		if stat.Status.Has(jesfs.StatUnclosed) {
			length = "unclosed"
		}

		fmt.Printf("%-21s %10s  %-7s  crc=%08X  ctime=%s\n",
			stat.Name, length, state, stat.CRC32, jesfs.FormatTime(stat.CTime))
	}
}
