package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgefn/routeprobe/internal/mockrouter"
)

type mockOptions struct {
	addr        string
	modelID     string
	tier        string
	errorEveryN int
	errorStatus int
	errorCode   string
	latencyMs   int
}

func newMockCmd() *cobra.Command {
	var opts mockOptions
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a deterministic local routing service for drills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMock(cmd, opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.addr, "addr", ":9099", "listen address")
	fs.StringVar(&opts.modelID, "model", "", "resolved model id served in plans")
	fs.StringVar(&opts.tier, "tier", "", "tier served in plans")
	fs.IntVar(&opts.errorEveryN, "error-every", 0, "inject one error per N plan requests (0 disables)")
	fs.IntVar(&opts.errorStatus, "error-status", 0, "status of injected errors")
	fs.StringVar(&opts.errorCode, "error-code", "", "error code of injected errors")
	fs.IntVar(&opts.latencyMs, "latency-ms", 0, "fixed added latency per plan request")
	return cmd
}

func runMock(cmd *cobra.Command, opts mockOptions) error {
	srv := mockrouter.New(mockrouter.Options{
		ModelID:     opts.modelID,
		Tier:        opts.tier,
		ErrorEveryN: opts.errorEveryN,
		ErrorStatus: opts.errorStatus,
		ErrorCode:   opts.errorCode,
		Latency:     time.Duration(opts.latencyMs) * time.Millisecond,
	})

	httpSrv := &http.Server{
		Addr:    opts.addr,
		Handler: srv.Engine(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "mock router listening on %s\n", opts.addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
