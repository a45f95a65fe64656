package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/chorale/internal/serve"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveOrigins []string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [output-dir]",
	Short: "Serve excerpt records over a read-only JSON API",
	Long: `Serve exposes the records and excerpt scores of an output directory:

  GET /api/pieces                        list processed pieces
  GET /api/pieces/{piece}                one piece with all records
  GET /api/records?piece=&kind=&cadence= filter records
  GET /api/records/{id}                  one record
  GET /api/records/{id}/score.{yaml|json|mid}
  GET /api/groups                        soprano phrase groups
  GET /healthz

Records are re-read on every request, so a running 'chorale process --watch'
shows up without a restart.

Example:
  chorale serve
  chorale serve ./chorale-out --addr :8090 --origin http://localhost:5173`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8090", "listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed CORS origins (default: any)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	dir := cfg.Output.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "✓ Serving %s on http://%s\n", dir, serveAddr)
	return serve.New(dir, serveOrigins).ListenAndServe(ctx, serveAddr)
}
