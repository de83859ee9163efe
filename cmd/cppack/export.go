package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"

	"github.com/lpar/gzipped/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cppack/cppack/internal/env"
)

const exportHelp = `cppack export [-flags]

Serve a local repository directory (archives plus index.json.gz, as
produced by repo-import/pack-sdist) over HTTP, gzip-aware so clients
that accept it get the precompressed .gz form directly.

Example:
  host % cppack export -dir out/
  client % cppack build -repo http://host:7080
`

// tcpKeepAliveListener enables TCP keep-alives on accepted connections, the
// same adjustment net/http.Server.ListenAndServe makes internally, needed
// here because export builds its own net.Listener to discover the bound
// address before serving.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	return tc, nil
}

func export(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("export", flag.ExitOnError)
	var (
		listen = fset.String("listen", ":7080", "[host]:port listen address")
		dir    = fset.String("dir", "", "repository directory to serve (default: CPPACK_CACHE)")
		gzip   = fset.Bool("gzip", true, "serve precompressed .gz siblings when the client accepts them")
	)
	fset.Usage = usage(fset, exportHelp)
	fset.Parse(args)

	root := *dir
	if root == "" {
		root = env.CacheRoot
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	addr := ln.Addr().String()
	mux := http.NewServeMux()
	if *gzip {
		mux.Handle("/", gzipped.FileServer(gzipped.Dir(root)))
	} else {
		mux.Handle("/", http.FileServer(http.Dir(root)))
	}
	server := &http.Server{Addr: addr, Handler: mux}
	log.Printf("exporting %s on %s", root, addr)

	var eg errgroup.Group
	eg.Go(func() error {
		err := server.Serve(tcpKeepAliveListener{ln.(*net.TCPListener)})
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	return eg.Wait()
}
