// Package messages implements the default output mode: parsed SIP messages
// filtered and printed one per summary line, or fully with --full,
// --headers, or --body.
package messages

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sipcraft/sofiacat/internal/pkg/cmdutil"
	"github.com/sipcraft/sofiacat/internal/pkg/filters"
	"github.com/sipcraft/sofiacat/internal/pkg/logger"
	"github.com/sipcraft/sofiacat/internal/pkg/render"
	"github.com/sipcraft/sofiacat/internal/pkg/sip"
)

var MessagesCmd = &cobra.Command{
	Use:   "messages [files...]",
	Short: "Print parsed SIP messages (default)",
	Long: `Parse the dump through the full pipeline and print each SIP message that
passes the filters. The default output is one summary line per message;
--full, --headers and --body switch to message content output.

Examples:
  sofiacat messages dump.20 dump.21
  sofiacat messages -m NOTIFY --headers dump.20
  sofiacat messages -c 'abc123@' --full dump.20`,
	Args: cobra.ArbitraryArgs,
	RunE: Run,
}

func init() {
	MessagesCmd.Flags().Bool("full", false, "show full SIP message content")
	MessagesCmd.Flags().Bool("headers", false, "show headers only, no body")
	MessagesCmd.Flags().Bool("body", false, "show body only")
	MessagesCmd.MarkFlagsMutuallyExclusive("full", "headers", "body")

	_ = viper.BindPFlag("output.full", MessagesCmd.Flags().Lookup("full"))
	_ = viper.BindPFlag("output.headers", MessagesCmd.Flags().Lookup("headers"))
	_ = viper.BindPFlag("output.body", MessagesCmd.Flags().Lookup("body"))
}

// Run executes the messages output mode. The root command uses it as the
// default action.
func Run(cmd *cobra.Command, args []string) error {
	f, err := filters.Compile(filters.FromViper())
	if err != nil {
		return err
	}

	in, closeInput, err := cmdutil.OpenInput(args)
	if err != nil {
		return err
	}
	defer closeInput()

	reader := sip.NewParsedReader(in)
	for {
		msg, err := reader.Next()
		if err != nil {
			var pe *sip.ParseError
			if errors.As(err, &pe) {
				logger.Error("parse error", "reason", pe.Reason, "address", pe.Raw.Address)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !f.Matches(msg) {
			continue
		}

		switch {
		case viper.GetBool("output.full"):
			printFull(msg)
		case viper.GetBool("output.headers"):
			printHeaders(msg)
		case viper.GetBool("output.body"):
			printBody(msg)
		default:
			fmt.Println(render.Summary(msg))
		}
	}
}

func printFull(msg *sip.Message) {
	fmt.Println(render.Detail(msg))
	content := string(msg.Bytes())
	fmt.Print(content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Println()
	}
}

func printHeaders(msg *sip.Message) {
	fmt.Println(render.Detail(msg))
	fmt.Println(msg.StartLine())
	for _, h := range msg.Headers {
		fmt.Printf("%s: %s\n", h.Name, h.Value)
	}
}

func printBody(msg *sip.Message) {
	if len(msg.Body) == 0 {
		return
	}
	body := string(msg.Body)
	fmt.Print(body)
	if !strings.HasSuffix(body, "\n") {
		fmt.Println()
	}
}
