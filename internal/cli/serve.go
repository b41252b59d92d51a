package cli

import (
	"github.com/spf13/cobra"

	"docqa/internal/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the upload, ask and delete endpoints used by the web front end.

Endpoints:
  GET  /                  health check
  POST /upload/           multipart field "files"
  POST /ask/              {"query": "..."}
  POST /delete_document/  {"filename": "..."}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.Config.Server.Addr
			}
			srv := api.NewServer(a.Service, api.Options{
				UploadDir:      a.Config.Server.UploadDir,
				AllowedOrigins: a.Config.Server.AllowedOrigins,
			}, a.Logger.With("component", "api"))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
