package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/golang/glog"

	fx "github.com/robotalks/hmtl.go/pkg/framework"
	"github.com/robotalks/hmtl.go/pkg/transport/websocket"
)

var (
	listenAddr = ":8866"
	path       = "/bus"
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Listening address.")
	flag.StringVar(&path, "path", path, "Websocket endpoint path.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	hub := websocket.NewHub()
	mux := http.NewServeMux()
	mux.Handle(path, hub.Handler())
	srv := &http.Server{Addr: listenAddr, Handler: mux}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("hub", fx.RunFunc(func(ctx context.Context) error {
		glog.Infof("hub listening on %s%s", listenAddr, path)
		return fx.RunWithContextCloser(ctx, srv, func() error {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	})))
	<-runner.Done()
	if err := runner.Wait(); err != nil {
		glog.Exitf("hub: %v", err)
	}
}
