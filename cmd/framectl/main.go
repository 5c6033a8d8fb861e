package main

import (
	"flag"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/tstromberg/fotoramme/pkg/frameserver"
)

var server = flag.String("server", "http://localhost:12801", "base URL of the frame server")

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Exitf("usage: framectl [--server URL] upload <photo>... | status")
	}

	switch args[0] {
	case "upload":
		if len(args) < 2 {
			klog.Exitf("upload requires at least one photo path")
		}
		for _, p := range args[1:] {
			if err := frameserver.Upload(*server, p); err != nil {
				klog.Exitf("upload %s failed: %v", p, err)
			}
			klog.Infof("uploaded %s", p)
		}
	case "status":
		st, err := frameserver.GetStatus(*server)
		if err != nil {
			klog.Exitf("status failed: %v", err)
		}
		fmt.Printf("current: %s (opacity %.2f)\n", st.Current, st.CurrentOpacity)
		if st.Transitioning {
			fmt.Printf("incoming: %s (opacity %.2f)\n", st.Next, st.NextOpacity)
		}
	default:
		klog.Exitf("unknown command %q", args[0])
	}
}
