package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-tello/internal/config"
	"github.com/teslashibe/go-tello/internal/log"
)

func newRootCommand() *cobra.Command {
	var (
		v       *viper.Viper
		cfgFile string
	)

	root := &cobra.Command{
		Use:           "tello",
		Short:         "Tello drone video stream and command server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", cfgFile, err)
				}
			}
			log.Setup(log.Options{
				Level: v.GetString("log.level"),
				File:  v.GetString("log.file"),
			})
			return nil
		},
	}

	v, err := config.New()
	if err != nil {
		// Surface a broken config file when a command runs, not at startup.
		root.PersistentPreRunE = func(*cobra.Command, []string) error { return err }
		v = viper.New()
		config.SetDefaults(v)
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./tello.yaml, $HOME/.tello/tello.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write logs to this file, rotated by size")
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("log.file", flags.Lookup("log-file"))

	root.AddCommand(newServeCommand(v))
	root.AddCommand(newSendCommand(v))
	root.AddCommand(newVersionCommand())
	return root
}
