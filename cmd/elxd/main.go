package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/device"
	"github.com/robotalks/elx/pkg/framework"
)

var configFile string

func init() {
	device.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "Config file in TOML, created with defaults if missing")
}

func main() {
	flag.Parse()
	if configFile != "" {
		if err := device.Default().LoadFile(configFile); err != nil {
			glog.Fatalln(err)
		}
		// flags on the command line win over the file.
		flag.Parse()
	}
	defer glog.Flush()

	d := device.NewConfig().MustNew()
	defer d.Close()
	runner := framework.NewRunner().HandleSignals()
	if err := d.Run(runner.Context); err != nil {
		glog.Errorf("stopped: %v", err)
	}
}
