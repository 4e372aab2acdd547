// Package raw implements the level-2 output mode: reassembled messages
// before aggregation splitting and SIP parsing.
package raw

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipcraft/sofiacat/internal/pkg/cmdutil"
	"github.com/sipcraft/sofiacat/internal/pkg/reassembly"
	"github.com/sipcraft/sofiacat/internal/pkg/render"
)

var RawCmd = &cobra.Command{
	Use:   "raw [files...]",
	Short: "Print reassembled message buffers (level 2)",
	Long: `Print each reassembled message buffer: the concatenated content of
consecutive frames sharing (direction, transport, address). Aggregated
buffers holding several back-to-back SIP messages are shown unsplit.

Example:
  sofiacat raw dump.20`,
	Args: cobra.ArbitraryArgs,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	in, closeInput, err := cmdutil.OpenInput(args)
	if err != nil {
		return err
	}
	defer closeInput()

	reader := reassembly.NewMessageReader(in)
	for {
		msg, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		fmt.Println(render.MessageLine(msg))
		content := string(msg.Content)
		fmt.Print(content)
		if !strings.HasSuffix(content, "\n") {
			fmt.Println()
		}
	}
}
