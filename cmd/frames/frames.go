// Package frames implements the level-1 output mode: raw dump frames as
// the FrameReader recovers them, before any reassembly.
package frames

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipcraft/sofiacat/internal/pkg/cmdutil"
	"github.com/sipcraft/sofiacat/internal/pkg/logger"
	"github.com/sipcraft/sofiacat/internal/pkg/render"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

var FramesCmd = &cobra.Command{
	Use:   "frames [files...]",
	Short: "Print raw dump frames (level 1)",
	Long: `Print each physical dump frame as it is recovered from the byte stream,
without reassembly or aggregation. Useful for inspecting framing problems
in a damaged or concatenated dump.

Example:
  sofiacat frames dump.20`,
	Args: cobra.ArbitraryArgs,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	in, closeInput, err := cmdutil.OpenInput(args)
	if err != nil {
		return err
	}
	defer closeInput()

	reader := sofia.NewFrameReader(in)
	for {
		frame, err := reader.Next()
		if err != nil {
			var fe *sofia.FrameError
			if errors.As(err, &fe) {
				logger.Error("frame error", "reason", fe.Reason)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		fmt.Println(render.FrameLine(frame))
		content := string(frame.Content)
		fmt.Print(content)
		if !strings.HasSuffix(content, "\n") {
			fmt.Println()
		}
	}
}
