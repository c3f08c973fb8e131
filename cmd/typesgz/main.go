// Command typesgz builds the item catalog (types.json.gz) from an SDE types.yaml.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/sde"
)

func main() {
	in := flag.String("in", "types.yaml", "SDE types.yaml")
	out := flag.String("out", "types.json.gz", "catalog file to write")
	flag.Parse()

	n, err := run(*in, *out)
	if err != nil {
		logger.Error("Builder", fmt.Sprintf("Build failed: %v", err))
		os.Exit(1)
	}
	logger.Success("Builder", "Catalog written", zap.String("path", *out), zap.Int("types", n))
}

// run converts in to out and returns the number of market types written.
// The output is written to a temp file in the same directory and renamed into place.
func run(in, out string) (int, error) {
	f, err := os.Open(filepath.Clean(in))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	items, err := sde.BuildFromSDE(bufio.NewReader(f))
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".types-*.json.gz")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := sde.Encode(w, items); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encode catalog: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return 0, err
	}
	return len(items), nil
}
