package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/topicrouter/internal/config"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

// withRuntime loads config and opens a runtime without transport for the
// duration of fn. Logs go to stderr at warn level.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()
	return fn(ctx, rt)
}

func newSubscribeCommand() *cobra.Command {
	var (
		form     types.SubscriptionForm
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Create or update a subscription",
		Long: `Create the subscription of (platform, channel, binding key) or update
its self id and enabled flag. Use --disabled to switch a subscription off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form.Enabled = !disabled
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.service.Subscribe(ctx, form); err != nil {
					return err
				}
				state := "enabled"
				if disabled {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscription %s/%s %q %s\n", form.Platform, form.ChannelID, form.BindingKey, state)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&form.Platform, "platform", "", "Platform of the channel")
	cmd.Flags().StringVar(&form.SelfID, "self-id", "", "Endpoint self id, used when self ids are not ignored")
	cmd.Flags().StringVar(&form.ChannelID, "channel", "", "Channel id")
	cmd.Flags().StringVar(&form.BindingKey, "key", "", "Binding key, e.g. order.#")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Store the subscription disabled")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newSubscriptionsCommand() *cobra.Command {
	var platform, channel, topic string

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List enabled subscriptions of a channel or a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			byTopic := topic != ""
			if byTopic == (channel != "") {
				return fmt.Errorf("exactly one of --topic or --channel is required")
			}
			if !byTopic && platform == "" {
				return fmt.Errorf("--platform is required with --channel")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				var subs []*types.Subscription
				var err error
				if byTopic {
					subs, err = rt.service.ListSubscriptionsByTopic(ctx, topic)
				} else {
					subs, err = rt.service.ListSubscriptionsByChannel(ctx, platform, channel)
				}
				if err != nil {
					return err
				}
				return printSubscriptions(cmd.OutOrStdout(), subs)
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "Platform of the channel")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel id")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to resolve subscribers for")
	return cmd
}

func newTopicsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List known topics and their claim counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				topics, err := rt.service.ListTopics(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TOPIC\tCLAIMS\tUPDATED")
				for _, t := range topics {
					fmt.Fprintf(w, "%s\t%d\t%s\n", t.Name, t.ClaimCount, t.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}

func printSubscriptions(out io.Writer, subs []*types.Subscription) error {
	if len(subs) == 0 {
		fmt.Fprintln(out, "No subscriptions")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tCHANNEL\tBINDING KEY\tSELF ID")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Platform, s.ChannelID, s.BindingKey, s.SelfID)
	}
	return w.Flush()
}
