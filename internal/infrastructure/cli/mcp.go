package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	inframcp "github.com/felixgeelhaar/qualify/internal/infrastructure/mcp"
	"github.com/spf13/cobra"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the qualify MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout belongs to the stdio transport, so logs always go to stderr.
		services, err := loadServicesForCurrentDir(newLogger(os.Stderr))
		if err != nil {
			return err
		}
		if os.Getenv("QUALIFY_SKIP_MCP_START") == "true" {
			return nil
		}

		inframcp.Version = Version
		inframcp.BuildCommit = Commit
		inframcp.BuildDate = Date
		server := inframcp.NewServerWithServices(services)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		defer services.Wait()

		switch strings.ToLower(mcpTransport) {
		case "stdio", "":
			return server.ServeStdio(ctx)
		case "http":
			return server.ServeHTTP(ctx, mcpAddr)
		case "ws", "websocket":
			return server.ServeWebSocket(ctx, mcpAddr)
		default:
			return NewCLIError(fmt.Sprintf("unsupported transport: %s", mcpTransport), "Use stdio, http or ws", nil)
		}
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for http/ws transports")
	RootCmd.AddCommand(mcpCmd)
}
