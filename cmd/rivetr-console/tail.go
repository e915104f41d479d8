package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLogsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logs APP_ID",
		Short: "Stream the runtime logs of an app to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			return tail(cmd.Context(), tailOptions{
				dialer: e.client.LogStream(args[0]),
				mode:   stream.ModeLogs,
				policy: e.cfg.RetryPolicy(),
				env:    e,
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
			})
		},
	}
}

func newBuildLogsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "build-logs DEPLOYMENT_ID",
		Short: "Print the build output of a deployment and exit when it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			return tail(cmd.Context(), tailOptions{
				dialer:    e.client.BuildLogs(args[0]),
				mode:      stream.ModeBuildLogs,
				policy:    e.cfg.RetryPolicy(),
				env:       e,
				out:       cmd.OutOrStdout(),
				errOut:    cmd.ErrOrStderr(),
				untilDown: true,
			})
		},
	}
}

type tailOptions struct {
	dialer    stream.Dialer
	mode      stream.Mode
	policy    stream.Policy
	env       *env
	out       io.Writer
	errOut    io.Writer
	untilDown bool // stop once an open stream goes away
}

// tail runs one Session and prints its entries until ctx ends, retries
// are exhausted or, with untilDown, the backend closes the stream
func tail(ctx context.Context, opts tailOptions) error {
	buf := stream.NewBuffer(stream.DefaultLogCap)
	p := &printer{
		buf:       buf,
		out:       opts.out,
		errOut:    opts.errOut,
		untilDown: opts.untilDown,
		done:      make(chan error, 1),
	}
	s := stream.NewSession(stream.Options{
		Dialer:   opts.dialer,
		Mode:     opts.mode,
		Buffer:   buf,
		Policy:   opts.policy,
		Logger:   opts.env.logger,
		Observer: p,
	})
	s.Start()
	defer s.Close()

	select {
	case <-ctx.Done():
		return nil
	case err := <-p.done:
		return err
	}
}

// printer writes entries as they arrive. It runs on the session goroutine,
// so stdout backpressure slows the stream instead of growing the buffer.
type printer struct {
	buf       *stream.Buffer
	out       io.Writer
	errOut    io.Writer
	untilDown bool

	once   sync.Once
	done   chan error
	opened bool
	next   uint64 // buffer position of the first unprinted entry
}

func (p *printer) BufferChanged(int) {
	entries, next := p.buf.Since(p.next)
	p.next = next
	for _, e := range entries {
		p.write(e)
	}
}

func (p *printer) StateChanged(st stream.State) {
	switch st.Phase {
	case stream.PhaseOpen:
		p.opened = true
	case stream.PhaseReconnecting:
		if p.untilDown && p.opened {
			p.finish(nil)
			return
		}
		fmt.Fprintf(p.errOut, "-- %s, retrying in %s (attempt %d)\n", st.Err, st.RetryIn, st.Attempt)
	case stream.PhaseFailed:
		p.finish(errors.New(st.Err))
	}
}

func (p *printer) finish(err error) {
	p.once.Do(func() { p.done <- err })
}

func (p *printer) write(e stream.Entry) {
	switch e.Kind {
	case stream.EntryInfo:
		fmt.Fprintf(p.out, "-- %s\n", e.Message)
	case stream.EntryError:
		fmt.Fprintf(p.out, "!! %s\n", e.Message)
	case stream.EntryOutput:
		fmt.Fprint(p.out, e.Message)
	default:
		if e.Timestamp != "" {
			fmt.Fprintf(p.out, "%s %s\n", e.Timestamp, e.Message)
			return
		}
		fmt.Fprintln(p.out, e.Message)
	}
}
