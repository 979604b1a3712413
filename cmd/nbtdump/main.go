// nbtdump decodes an NBT file (raw or gzip-compressed, like level.dat)
// and prints the root compound as indented JSON.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/go-theft-craft/anvil/pkg/nbt"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "o", "", "output file (default stdout)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() != 1 {
		log.Error("usage: nbtdump [-o out.json] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Error("open", "file", path, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	var (
		name string
		root nbt.Compound
	)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		name, root, err = nbt.LoadGzip(br)
		if err != nil {
			log.Error("decode", "file", path, "error", err)
			os.Exit(1)
		}
	} else {
		name, root, err = nbt.Load(br)
		if err != nil {
			log.Error("decode", "file", path, "error", err)
			os.Exit(1)
		}
	}
	if name != "" {
		log.Info("root tag is named", "name", name)
	}

	out := os.Stdout
	if outPath != "" {
		out, err = os.Create(outPath)
		if err != nil {
			log.Error("create output", "file", outPath, "error", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		log.Error("encode json", "error", err)
		os.Exit(1)
	}
}
