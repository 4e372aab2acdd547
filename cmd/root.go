package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sipcraft/sofiacat/cmd/frames"
	"github.com/sipcraft/sofiacat/cmd/messages"
	"github.com/sipcraft/sofiacat/cmd/raw"
	"github.com/sipcraft/sofiacat/cmd/stats"
	"github.com/sipcraft/sofiacat/internal/pkg/filters"
	"github.com/sipcraft/sofiacat/internal/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sofiacat [files...]",
	Short: "sofiacat reads mod_sofia SIP traces for you",
	Long: `sofiacat parses FreeSWITCH mod_sofia SIP trace dump files into structured
SIP messages, reassembling TCP frames and splitting aggregated buffers along
the way. Input is one or more dump files (rotated dumps may simply be listed
in order), or stdin for piped captures:

  sofiacat sofia.dump.20 sofia.dump.21
  xzcat sofia.dump.20.xz | sofiacat -m INVITE
  xzgrep -C200 mycall@host sofia.dump.*.xz | sofiacat --grep -c mycall

Without a subcommand, parsed messages are printed one summary line each
(the messages subcommand). Use frames or raw for the lower pipeline levels
and stats for a traffic summary.`,
	Args: cobra.ArbitraryArgs,
	RunE: messages.Run,
}

// Execute runs the root command. Invalid filter expressions exit with
// status 2, every other failure with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ce *filters.CompileError
		if errors.As(err, &ce) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, logger.Initialize)

	rootCmd.AddCommand(messages.MessagesCmd)
	rootCmd.AddCommand(frames.FramesCmd)
	rootCmd.AddCommand(raw.RawCmd)
	rootCmd.AddCommand(stats.StatsCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sofiacat.yaml)")
	rootCmd.PersistentFlags().StringSliceP("method", "m", nil, "include SIP method (responses match via CSeq), repeatable")
	rootCmd.PersistentFlags().StringSliceP("exclude", "x", nil, "exclude SIP method (responses match via CSeq), repeatable")
	rootCmd.PersistentFlags().StringP("call-id", "c", "", "match Call-ID by regex")
	rootCmd.PersistentFlags().StringP("direction", "d", "", "filter by direction (recv/sent)")
	rootCmd.PersistentFlags().StringP("address", "a", "", "match address by regex")
	rootCmd.PersistentFlags().StringArrayP("header", "H", nil, "match header value by regex (NAME=REGEX), repeatable")
	rootCmd.PersistentFlags().Bool("grep", false, "strip grep -C group separators from the input")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console/json)")

	_ = viper.BindPFlag("filter.method", rootCmd.PersistentFlags().Lookup("method"))
	_ = viper.BindPFlag("filter.exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	_ = viper.BindPFlag("filter.call_id", rootCmd.PersistentFlags().Lookup("call-id"))
	_ = viper.BindPFlag("filter.direction", rootCmd.PersistentFlags().Lookup("direction"))
	_ = viper.BindPFlag("filter.address", rootCmd.PersistentFlags().Lookup("address"))
	_ = viper.BindPFlag("filter.header", rootCmd.PersistentFlags().Lookup("header"))
	_ = viper.BindPFlag("input.grep", rootCmd.PersistentFlags().Lookup("grep"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sofiacat")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
