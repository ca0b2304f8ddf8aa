package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/pkg/logger"
)

// dialFunc ouvre le bus ; remplacé par le bus mémoire dans les tests.
type dialFunc func(ctx context.Context, url string, log *slog.Logger) (eventbus.Bus, error)

func dialNATS(ctx context.Context, url string, log *slog.Logger) (eventbus.Bus, error) {
	c := eventbus.NewClient(eventbus.Config{URL: url, Name: "busctl"}, log)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return flushingBus{c}, nil
}

// flushingBus vide le tampon avant de fermer : Publish n'attend pas le broker.
type flushingBus struct{ *eventbus.Client }

func (b flushingBus) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ferr := b.Client.Flush(ctx)
	return errors.Join(ferr, b.Client.Close())
}

func newRootCmd(out io.Writer, dial dialFunc) *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("EVENTS_TOPIC", events.Exchange)

	root := &cobra.Command{
		Use:           "busctl",
		Short:         "Publish and observe post lifecycle events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("nats-url", "", "broker URL (env NATS_URL)")
	root.PersistentFlags().String("topic", "", "topic exchange (env EVENTS_TOPIC)")
	root.PersistentFlags().Bool("durable", false, "declare the topic with file storage")
	_ = v.BindPFlag("NATS_URL", root.PersistentFlags().Lookup("nats-url"))
	_ = v.BindPFlag("EVENTS_TOPIC", root.PersistentFlags().Lookup("topic"))
	_ = v.BindPFlag("EVENTS_DURABLE", root.PersistentFlags().Lookup("durable"))

	// open connecte le bus et déclare le topic ; les logs vont sur stderr pour garder stdout lisible.
	open := func(ctx context.Context) (eventbus.Bus, error) {
		log := logger.InitWriter(v.GetString("APP_ENV"), os.Stderr)
		bus, err := dial(ctx, v.GetString("NATS_URL"), log)
		if err != nil {
			return nil, err
		}
		if err := bus.DeclareTopic(ctx, v.GetString("EVENTS_TOPIC"), v.GetBool("EVENTS_DURABLE")); err != nil {
			_ = bus.Close()
			return nil, err
		}
		return bus, nil
	}

	root.AddCommand(newPublishCmd(out, open), newTailCmd(out, open))
	return root
}

func newPublishCmd(out io.Writer, open func(context.Context) (eventbus.Bus, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <routing-key> <json|@file>",
		Short: "Publish one event",
		Example: `  busctl publish post.deleted '{"postId":"p1","userId":"u1","mediaIds":["m1"]}'
  busctl publish post.created @event.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			routingKey := args[0]
			raw, err := readPayload(args[1])
			if err != nil {
				return err
			}
			payload, err := decodePayload(routingKey, raw)
			if err != nil {
				return err
			}

			bus, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer bus.Close()

			if err := bus.Publish(cmd.Context(), routingKey, payload); err != nil {
				return err
			}
			fmt.Fprintf(out, "published %s\n", routingKey)
			return nil
		},
	}
	return cmd
}

func newTailCmd(out io.Writer, open func(context.Context) (eventbus.Bus, error)) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "tail [pattern]",
		Short: "Print events matching a routing pattern (default #)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "#"
			if len(args) == 1 {
				pattern = args[0]
			}

			bus, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer bus.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var (
				mu   sync.Mutex
				seen int
			)
			enc := json.NewEncoder(out)
			_, err = bus.Subscribe(ctx, pattern, func(_ context.Context, d eventbus.Delivery) error {
				mu.Lock()
				defer mu.Unlock()
				if count > 0 && seen >= count {
					return nil
				}
				seen++
				if err := enc.Encode(tailLine{RoutingKey: d.RoutingKey, Attempt: d.Attempt, Envelope: d.Envelope}); err != nil {
					return eventbus.Discard(err)
				}
				if count > 0 && seen >= count {
					cancel()
				}
				return nil
			})
			if err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n events (0 = until interrupted)")
	return cmd
}

type tailLine struct {
	RoutingKey string            `json:"routingKey"`
	Attempt    int               `json:"attempt"`
	Envelope   eventbus.Envelope `json:"envelope"`
}

func readPayload(arg string) ([]byte, error) {
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		return os.ReadFile(path)
	}
	return []byte(arg), nil
}

// decodePayload type les événements connus pour que l'enveloppe porte le bon type et la bonne version.
func decodePayload(routingKey string, raw []byte) (any, error) {
	var target any
	switch routingKey {
	case events.RoutingKeyPostCreated:
		target = &events.PostCreated{}
	case events.RoutingKeyPostDeleted:
		target = &events.PostDeleted{}
	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("payload for %s is not valid JSON", routingKey)
		}
		return json.RawMessage(raw), nil
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("payload for %s: %w", routingKey, err)
	}
	switch e := target.(type) {
	case *events.PostCreated:
		return *e, nil
	case *events.PostDeleted:
		return *e, nil
	}
	return target, nil
}
