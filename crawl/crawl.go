package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	extr "github.com/nci/voxrgb/crawl/extractor"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	conc := flag.Int("conc", 4, "Number of directories read concurrently.")
	pattern := flag.String("pattern", "", `Filter expression over path and type, e.g. type == 'dir' || path =~ '.*_pet\.npy$'`)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Please provide a path to a .npy file or to a directory to crawl")
	}
	root := flag.Arg(0)

	enc := json.NewEncoder(os.Stdout)
	fi, err := os.Stat(root)
	ensure(err)
	if !fi.IsDir() {
		info, err := extr.ExtractVolumeInfo(root)
		ensure(err)
		ensure(enc.Encode(info))
		return
	}

	crawler, err := extr.NewVolumeCrawler(*conc, *pattern, func(info *extr.VolumeInfo) {
		if err := enc.Encode(info); err != nil {
			log.Printf("output error: %v", err)
		}
	})
	ensure(err)

	if err := crawler.Crawl(root); err != nil {
		os.Stderr.Write([]byte(err.Error() + "\n"))
	}
}
