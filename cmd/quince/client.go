package main

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/eeverettrbx/qcore"
	ccfg "github.com/eeverettrbx/qcore/internal/config"
	"github.com/eeverettrbx/qcore/transport"
)

var clientFlags struct {
	configPath string
	listen     string
	insecure   bool
	data       string
	logLevel   int
}

var clientCmd = &cobra.Command{
	Use:   "client <address>",
	Short: "dial a qcore server and exchange one request/response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(args[0])
	},
}

func init() {
	f := clientCmd.Flags()
	f.StringVar(&clientFlags.configPath, "config", "", "YAML config file (defaults if unset)")
	f.StringVar(&clientFlags.listen, "listen", "0.0.0.0:0", "local address to bind")
	f.BoolVar(&clientFlags.insecure, "insecure", false, "skip verifying server certificate")
	f.StringVar(&clientFlags.data, "data", "GET /\r\n", "data to send on stream 5")
	f.IntVar(&clientFlags.logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
}

func runClient(addr string) error {
	file, err := loadConfigFile(clientFlags.configPath)
	if err != nil {
		return err
	}
	config := qcore.NewConfigFromFile(file)
	config.TLS.InsecureSkipVerify = clientFlags.insecure

	handler := &clientHandler{data: clientFlags.data}
	client := qcore.NewClient(config)
	client.SetHandler(handler)
	client.SetLogger(clientFlags.logLevel, os.Stdout)
	if err := client.ListenAndServe(clientFlags.listen); err != nil {
		return err
	}
	handler.wg.Add(1)
	if _, err := client.Connect(addr); err != nil {
		return err
	}
	handler.wg.Wait()
	return client.Close()
}

type clientHandler struct {
	wg   sync.WaitGroup
	data string
}

func (h *clientHandler) Serve(c *qcore.Conn, events []transport.Event) {
	for _, e := range events {
		log.Printf("%s connection event: %v", c.RemoteAddr(), e.Type)
		switch e.Type {
		case qcore.EventConnAccept:
			// Client-local stream ids are odd (spec.md 3's parity scheme).
			st := c.Stream(5)
			if st != nil {
				_, _ = st.Write([]byte(h.data))
				_ = st.Close()
			}
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st != nil {
				buf := make([]byte, 512)
				n, _ := st.Read(buf)
				fmt.Printf("stream %d received:\n%s\n", e.StreamID, buf[:n])
			}
		case qcore.EventConnClose:
			h.wg.Done()
		}
	}
}

func loadConfigFile(path string) (*ccfg.File, error) {
	if path == "" {
		return ccfg.Default(), nil
	}
	return ccfg.Load(path)
}
