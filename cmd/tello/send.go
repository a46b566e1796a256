package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-tello/internal/httpc"
	"github.com/teslashibe/go-tello/pkg/web"
)

func newSendCommand(v *viper.Viper) *cobra.Command {
	var (
		server   string
		asPhrase bool
	)

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send a command to a running tello server",
		Long: `Send a literal command ("take off", "land", "forward", "left", "right",
"up", "down") or, with --phrase, a sentence such as "go forward two meters".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = "http://localhost:" + v.GetString("web.port")
			}
			text := strings.Join(args, " ")

			var (
				url  string
				body any
			)
			if asPhrase {
				url, body = server+"/api/phrase", web.PhraseRequest{Text: text}
			} else {
				url, body = server+"/api/command", web.CommandRequest{Command: text}
			}

			var resp web.CommandResponse
			err := httpc.PostJSON(cmd.Context(), url, body, &resp)

			var statusErr *httpc.StatusError
			if errors.As(err, &statusErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("✗"), statusErr.Body)
				return fmt.Errorf("server answered %d", statusErr.StatusCode)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓"), resp.Command)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: http://localhost:<web.port>)")
	cmd.Flags().BoolVarP(&asPhrase, "phrase", "p", false, "parse the text as a spoken phrase")
	return cmd
}
