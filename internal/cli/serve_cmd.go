// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve_cmd.go - Run the HTTP API for the browser front end.

package cli

import (
	"context"
	"net"

	"github.com/jeranaias/redactor/internal/offline"
	"github.com/jeranaias/redactor/internal/server"
)

// HandleServe runs the HTTP server until ctx is canceled.
func (a *App) HandleServe(ctx context.Context) error {
	addr := a.args.Flag("addr")
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if host, _, err := net.SplitHostPort(addr); err != nil {
		return NewValidationErrorWithExample("addr", addr, err.Error(), "127.0.0.1:8080")
	} else if !offline.IsLocalhost(host) {
		a.logger.Warn("server is reachable from the network; documents with personal data will be accepted from other hosts", "addr", addr)
	}

	srv := server.New(a.serverConfig(addr), a.ollamaClient(), a.logger)
	if r := a.remoteClient(); r != nil {
		srv.WithRemote(r)
	}
	if a.connect != nil {
		srv.WithConnector(a.connect)
	}

	a.note("Listening on http://%s (ctrl+c to stop)", srv.Addr())
	return srv.Serve(ctx)
}

func (a *App) serverConfig(addr string) server.Config {
	return server.Config{
		Addr:                addr,
		Version:             Version,
		MaxUploadBytes:      a.cfg.Server.MaxUploadBytes,
		RateLimit:           a.cfg.Server.RateLimit,
		RateBurst:           a.cfg.Server.RateBurst,
		Sanitize:            a.cfg.SanitizeOptions(),
		DefaultJurisdiction: a.cfg.Session.DefaultJurisdiction,
	}
}
