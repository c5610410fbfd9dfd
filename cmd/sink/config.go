package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/emberfield/statline/internal/misc"
)

const (
	defaultListenAddr = ":8070"
	defaultDSN        = ""
)

type sinkConfig struct {
	Address string
	DSN     string
}

// CLI > ENV > defaults
func loadConfig(args []string, out io.Writer) (sinkConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("sink", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt string
	var dsnOpt string

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("HTTP listen address, default: %s", defaultListenAddr))
	fs.StringVar(&dsnOpt, "d", "", fmt.Sprintf("DATABASE_DSN for Postgres, default: %q", defaultDSN))

	if err := fs.Parse(args); err != nil {
		return sinkConfig{}, err
	}

	addr := strings.TrimSpace(addrOpt)
	if addr == "" {
		addr = misc.Getenv("ADDRESS", defaultListenAddr)
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return sinkConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	dsn := strings.TrimSpace(dsnOpt)
	if dsn == "" {
		dsn = misc.Getenv("DATABASE_DSN", defaultDSN)
	}

	return sinkConfig{Address: addr, DSN: dsn}, nil
}
