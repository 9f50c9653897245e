package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/hmtl.go/pkg/env"
	fx "github.com/robotalks/hmtl.go/pkg/framework"
	"github.com/robotalks/hmtl.go/pkg/node"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := env.NewConfig().MustLoad()
	n, err := node.New(cfg, node.Options{})
	if err != nil {
		glog.Exitf("node: %v", err)
	}
	defer n.Close()

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("node", n))
	<-runner.Done()
	if err := runner.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		glog.Errorf("node stopped: %v", err)
	}
}
