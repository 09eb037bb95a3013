package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eeverettrbx/qcore"
	"github.com/eeverettrbx/qcore/transport"
)

var serverFlags struct {
	configPath string
	listen     string
	logLevel   int
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "accept qcore connections and echo every stream back",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	f := serverCmd.Flags()
	f.StringVar(&serverFlags.configPath, "config", "", "YAML config file (defaults if unset)")
	f.StringVar(&serverFlags.listen, "listen", "0.0.0.0:4433", "address to listen on")
	f.IntVar(&serverFlags.logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
}

func runServer() error {
	file, err := loadConfigFile(serverFlags.configPath)
	if err != nil {
		return err
	}
	config := qcore.NewConfigFromFile(file)

	if config.Metrics != nil {
		config.Metrics.MustRegister(prometheus.DefaultRegisterer)
		if file.Metrics.Address != "" {
			go serveMetrics(file.Metrics.Address)
		}
	}

	server := qcore.NewServer(config)
	server.SetHandler(qcore.HandlerFunc(echoHandler))
	server.SetLogger(serverFlags.logLevel, os.Stdout)
	if err := server.ListenAndServe(serverFlags.listen); err != nil {
		return err
	}
	log.Printf("quince server listening on %s", server.LocalAddr())
	select {}
}

func echoHandler(c *qcore.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st == nil {
				continue
			}
			buf := make([]byte, 4096)
			n, _ := st.Read(buf)
			if n > 0 {
				_, _ = st.Write(buf[:n])
			}
		case qcore.EventConnClose:
			log.Printf("%s closed", c.RemoteAddr())
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}
