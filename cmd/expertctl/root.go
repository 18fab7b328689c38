package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"expertdir/apps/recommender/internal/rpc"
	"expertdir/apps/recommender/internal/worker"
)

type options struct {
	addr    string
	nsqd    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "expertctl",
		Short:        "Call the expert recommender",
		SilenceUsage: true, // don't print usage on operational errors
		Long: `expertctl sends one request to a running recommender, over HTTP (--addr)
or over the NSQ request topic (--nsqd), and prints the JSON result.`,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "http://localhost:8081", "Recommender HTTP base URL")
	root.PersistentFlags().StringVar(&opts.nsqd, "nsqd", "", "nsqd TCP address; when set, requests go over NSQ instead of HTTP")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "How long to wait for the reply")

	root.AddCommand(
		&cobra.Command{
			Use:   "keywords <text>",
			Short: "Extract keywords from a text",
			Args:  cobra.ExactArgs(1),
			RunE: opts.run(func(ctx context.Context, c *rpc.Client, args []string) (any, error) {
				return c.ExtractKeywords(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "recommend <question>",
			Short: "Recommend experts for a question",
			Args:  cobra.ExactArgs(1),
			RunE: opts.run(func(ctx context.Context, c *rpc.Client, args []string) (any, error) {
				return c.Recommend(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "add <skills> <email>",
			Short: "Index the skills of a new expert",
			Args:  cobra.ExactArgs(2),
			RunE: opts.run(func(ctx context.Context, c *rpc.Client, args []string) (any, error) {
				return nil, c.Add(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "update <skills> <email>",
			Short: "Replace the indexed skills of an expert",
			Args:  cobra.ExactArgs(2),
			RunE: opts.run(func(ctx context.Context, c *rpc.Client, args []string) (any, error) {
				return nil, c.Update(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "delete <email>",
			Short: "Remove an expert from the index",
			Args:  cobra.ExactArgs(1),
			RunE: opts.run(func(ctx context.Context, c *rpc.Client, args []string) (any, error) {
				return nil, c.Delete(ctx, args[0])
			}),
		},
	)
	return root
}

type callFunc func(ctx context.Context, c *rpc.Client, args []string) (any, error)

// run wraps fn with caller setup and prints its result as JSON. Index
// operations print {"status":"success"}.
func (o *options) run(fn callFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		caller, closeFn, err := o.caller()
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
		defer cancel()

		out, err := fn(ctx, rpc.NewClient(caller), args)
		if err != nil {
			var remote *rpc.RemoteError
			if errors.As(err, &remote) {
				return fmt.Errorf("recommender error: %s", remote.Message)
			}
			return err
		}
		if out == nil {
			out = map[string]rpc.Status{"status": rpc.StatusSuccess}
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func (o *options) caller() (rpc.Caller, func(), error) {
	if o.nsqd != "" {
		r, closeFn, err := worker.DialRequester(o.nsqd)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to nsqd %s: %w", o.nsqd, err)
		}
		return r, closeFn, nil
	}
	return rpc.NewHTTPCaller(o.addr, o.timeout), func() {}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
