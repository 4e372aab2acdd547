// Package cmdutil holds helpers shared by the CLI commands.
package cmdutil

import (
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

// OpenInput opens the named dump files as one concatenated byte stream.
// No names, or a single "-", means stdin. When the input.grep config key is
// set the stream is wrapped to strip grep -C group separators.
func OpenInput(paths []string) (io.Reader, func(), error) {
	var readers []io.Reader
	var closers []io.Closer

	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if len(paths) == 0 {
		readers = append(readers, os.Stdin)
	}
	for _, p := range paths {
		if p == "-" {
			readers = append(readers, os.Stdin)
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}

	var r io.Reader
	if len(readers) == 1 {
		r = readers[0]
	} else {
		r = io.MultiReader(readers...)
	}

	if viper.GetBool("input.grep") {
		r = sofia.NewGrepFilter(r)
	}
	return r, closeAll, nil
}
