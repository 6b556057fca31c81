package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mossy-p/whiteboard-signaling/internal/client"
	"github.com/mossy-p/whiteboard-signaling/internal/logger"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/mossy-p/whiteboard-signaling/internal/peer"
	"github.com/spf13/cobra"
)

var (
	flagRoom   string
	flagName   string
	flagCall   bool
	flagScreen bool
	flagSTUN   string
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a session",
	Long: `Join a session and stay in it until interrupted.

Lines typed on stdin are sent as chat messages. While in the call,
/mute and /video toggle the local tracks and /leave hangs up.

Examples:
  wbpeer join --room ABCD1234 --name Ana
  wbpeer join --room ABCD1234 --call --screen --token "$TOKEN"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runJoin(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagRoom, "room", "", "room code")
	joinCmd.Flags().StringVar(&flagName, "name", "", "display name")
	joinCmd.Flags().BoolVar(&flagCall, "call", false, "join the call with generated audio and video")
	joinCmd.Flags().BoolVar(&flagScreen, "screen", false, "share a generated screen track")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "stun:stun.l.google.com:19302", "STUN server, empty for host candidates only")
	joinCmd.MarkFlagRequired("room")
}

// wsURL turns the relay base URL into its websocket endpoint.
func wsURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/whiteboard"
	return u.String(), nil
}

func runJoin(ctx context.Context, in io.Reader, out io.Writer) error {
	log := logger.New(flagLogLevel, flagPretty)

	endpoint, err := wsURL(flagServer)
	if err != nil {
		return err
	}
	c, err := client.Dial(ctx, endpoint, flagToken, log)
	if err != nil {
		return err
	}
	defer c.Close()

	factory, err := peer.NewPionFactory(flagSTUN, logger.NewPionFactory(log))
	if err != nil {
		return err
	}

	s := newSession(flagRoom, out)
	o := peer.New(peer.Options{
		RoomID:     flagRoom,
		Signaler:   c,
		Transports: factory,
		Media:      peer.SampleSource{},
		Log:        log,
		Hooks:      s.hooks(),
	})
	defer o.TeardownAll()

	var kinds []models.MediaKind
	if flagCall {
		kinds = append(kinds, models.MediaKindMedia)
	}
	if flagScreen {
		kinds = append(kinds, models.MediaKindScreen)
	}

	if err := c.Send(models.EventJoinRoom, models.JoinRoom{RoomID: flagRoom, DisplayName: flagName}); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	joined := false
	for {
		select {
		case <-ctx.Done():
			if s.inCall {
				o.LeaveCall()
			}
			return nil

		case env, ok := <-c.Incoming():
			if !ok {
				return client.ErrClosed
			}
			if err := o.Route(env); err != nil {
				log.Warn().Err(err).Str("event", string(env.Event)).Msg("failed to apply event")
			}
			s.show(env)

			// Capture only once the roster is known so every remote gets a link.
			if env.Event == models.EventUpdateUsers && !joined {
				joined = true
				for _, kind := range kinds {
					if err := o.AcquireLocalMedia(ctx, kind); err != nil {
						return err
					}
					s.inCall = true
				}
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := s.command(o, c, line); err != nil {
				fmt.Fprintln(out, "!", err)
			}
		}
	}
}
