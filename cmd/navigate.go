package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/clock/system"
	"github.com/JakeFAU/newsroom-edge/internal/navigation"
)

type navigateOptions struct {
	baseURL   string
	label     string
	noLoading bool
	prefetch  bool
	wait      time.Duration
}

// newNavigateCmd creates the 'navigate' subcommand, a scripted client that
// drives the navigation loading machine against a running API.
func newNavigateCmd() *cobra.Command {
	var opts navigateOptions
	cmd := &cobra.Command{
		Use:   "navigate <path>...",
		Short: "Walks site paths through the navigation loading machine",
		Long: `Requests each path the way the site does on a link click: the
machine enters the pending phase, shows the target label, and pushes the
route after the configured delay. Article paths are prefetched first, as a
hover would.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNavigate(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "API base URL (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&opts.label, "label", "", "loading label shown instead of the last path segment")
	cmd.Flags().BoolVar(&opts.noLoading, "no-loading", false, "push immediately without the loading phase")
	cmd.Flags().BoolVar(&opts.prefetch, "prefetch", true, "send a hover prefetch for article paths before navigating")
	cmd.Flags().DurationVar(&opts.wait, "wait", 10*time.Second, "how long to wait for scheduled pushes")
	return cmd
}

func runNavigate(cmd *cobra.Command, paths []string, opts navigateOptions) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	base := opts.baseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", env.Config.Server.Port)
	}
	if _, err := url.Parse(base); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}

	out := cmd.OutOrStdout()
	router := &apiRouter{
		client: &http.Client{Timeout: env.Config.Server.RequestTimeout},
		base:   strings.TrimRight(base, "/"),
		apiKey: env.Config.Auth.APIKey,
		out:    out,
	}
	machine := navigation.New(router, system.New(), navigation.Config{
		Delay:            env.Config.Navigation.Delay,
		SupersedePending: env.Config.Navigation.SupersedePending,
	}, env.Logger)

	for _, path := range paths {
		if opts.prefetch {
			if articleSlug, ok := strings.CutPrefix(path, "/articles/"); ok {
				router.prefetch(cmd.Context(), navigation.LastSegment("/"+articleSlug))
			}
		}
		machine.Request(path, navigation.Options{ShowLoading: !opts.noLoading, Label: opts.label})
		snap := machine.Snapshot()
		router.printf("request %s: phase=%s navigating=%t label=%q scheduled=%d\n",
			path, snap.Phase, snap.Navigating, snap.TargetLabel, snap.Scheduled)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.wait)
	defer cancel()
	if err := waitIdle(ctx, machine); err != nil {
		return err
	}
	machine.Reset()

	if failed := router.failures(); failed > 0 {
		env.Logger.Warn("some navigations failed", zap.Int("failed", failed))
		return fmt.Errorf("%d of %d navigations failed", failed, len(paths))
	}
	return nil
}

func waitIdle(ctx context.Context, machine *navigation.Machine) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for machine.Snapshot().Scheduled > 0 {
		select {
		case <-ctx.Done():
			return errors.New("timed out waiting for scheduled navigations")
		case <-ticker.C:
		}
	}
	return nil
}

// apiRouter pushes a route by fetching its API resource.
type apiRouter struct {
	client *http.Client
	base   string
	apiKey string
	out    io.Writer

	mu     sync.Mutex
	failed int
}

func (r *apiRouter) Push(path string) error {
	resp, err := r.client.Get(r.base + "/api" + path)
	if err != nil {
		r.fail()
		return fmt.Errorf("push %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	r.printf("pushed %s: %d\n", path, resp.StatusCode)
	if resp.StatusCode >= http.StatusBadRequest {
		r.fail()
		return fmt.Errorf("push %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (r *apiRouter) prefetch(ctx context.Context, articleSlug string) {
	if articleSlug == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.base+"/api/prefetch/"+url.PathEscape(articleSlug)+"?signal=hover", nil)
	if err != nil {
		return
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

// printf serializes writes to out; Push runs on the machine's timer goroutines.
func (r *apiRouter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *apiRouter) fail() {
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
}

func (r *apiRouter) failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}
