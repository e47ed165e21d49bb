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

	"github.com/felixgeelhaar/qualify/internal/infrastructure/sse"
	"github.com/felixgeelhaar/qualify/internal/infrastructure/watch"
	"github.com/felixgeelhaar/qualify/internal/infrastructure/web"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form, JSON API and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd.ErrOrStderr())
		services, err := loadServicesForCurrentDir(logger)
		if err != nil {
			return err
		}

		feed := sse.NewSSEHandler()
		services.Generation.WithObserver(feed)

		server, err := web.NewServer(serveAddr, services.Generation, services.Planner, logger)
		if err != nil {
			return err
		}
		server.WithEvents(feed)
		if os.Getenv("QUALIFY_SKIP_SERVE") == "true" {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !serveNoWatch {
			watcher := watch.NewTemplateWatcher(services.Workspace.TemplatesDir(), watch.DefaultDebounce,
				services.Workspace.ReloadTemplates, logger)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Warn("template watcher stopped", "error", err)
				}
			}()
		}

		go func() {
			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down web server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Serving qualify (%s) on %s\n", services.Provider.ID(), serveAddr)
		fmt.Fprintln(out, "Endpoints:")
		fmt.Fprintln(out, "  GET  /               question form")
		fmt.Fprintln(out, "  GET  /plan           task planner form")
		fmt.Fprintln(out, "  POST /api/generate   JSON generation")
		fmt.Fprintln(out, "  GET  /ws             streamed generation")
		fmt.Fprintln(out, "  GET  /events         live activity of all runs")
		fmt.Fprintln(out, "  GET  /metrics        prometheus metrics")
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		services.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8501", "Address to listen on")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload templates when files change")
	RootCmd.AddCommand(serveCmd)
}
