// Package stats implements the statistics output mode: counts of parsed
// messages by direction, method, and response code.
package stats

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sipcraft/sofiacat/internal/pkg/cmdutil"
	"github.com/sipcraft/sofiacat/internal/pkg/filters"
	"github.com/sipcraft/sofiacat/internal/pkg/sip"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

var StatsCmd = &cobra.Command{
	Use:   "stats [files...]",
	Short: "Print a traffic summary",
	Long: `Run the full pipeline and print counts of matched messages by direction,
method, and response code. Filters apply before counting.

Example:
  sofiacat stats -x OPTIONS dump.20`,
	Args: cobra.ArbitraryArgs,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	f, err := filters.Compile(filters.FromViper())
	if err != nil {
		return err
	}

	in, closeInput, err := cmdutil.OpenInput(args)
	if err != nil {
		return err
	}
	defer closeInput()

	methodCounts := make(map[string]int)
	statusCounts := make(map[int]int)
	directionCounts := make(map[sofia.Direction]int)
	var total, matched, parseErrors int

	reader := sip.NewParsedReader(in)
	for {
		msg, err := reader.Next()
		if err != nil {
			var pe *sip.ParseError
			if errors.As(err, &pe) {
				total++
				parseErrors++
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		total++
		if !f.Matches(msg) {
			continue
		}
		matched++
		directionCounts[msg.Direction]++
		if msg.Request != nil {
			methodCounts[msg.Request.Method]++
		} else {
			statusCounts[msg.Response.Code]++
			if method, ok := msg.Method(); ok {
				methodCounts[method]++
			}
		}
	}

	fmt.Printf("total: %d\n", total)
	fmt.Printf("matched: %d\n", matched)
	if parseErrors > 0 {
		fmt.Printf("parse errors: %d\n", parseErrors)
	}
	if n := directionCounts[sofia.Recv]; n > 0 {
		fmt.Printf("recv: %d\n", n)
	}
	if n := directionCounts[sofia.Sent]; n > 0 {
		fmt.Printf("sent: %d\n", n)
	}

	if len(methodCounts) > 0 {
		fmt.Println("\nmethods:")
		type kv struct {
			method string
			count  int
		}
		var methods []kv
		for m, c := range methodCounts {
			methods = append(methods, kv{m, c})
		}
		sort.Slice(methods, func(i, j int) bool {
			if methods[i].count != methods[j].count {
				return methods[i].count > methods[j].count
			}
			return methods[i].method < methods[j].method
		})
		for _, m := range methods {
			fmt.Printf("  %s: %d\n", m.method, m.count)
		}
	}

	if len(statusCounts) > 0 {
		fmt.Println("\nresponse codes:")
		var codes []int
		for c := range statusCounts {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		for _, c := range codes {
			fmt.Printf("  %d: %d\n", c, statusCounts[c])
		}
	}

	return nil
}
