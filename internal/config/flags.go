package config

import (
	"flag"
	"io"

	"github.com/interviewhub/authcore/internal/flagx"
)

// parseFlags overlays the command-line flags:
//
//	-a string     HTTP bind address
//	-g string     gRPC bind address
//	-d string     database DSN
//	-s string     JWT secret
//	-m duration   maintenance interval, e.g. "30m"
func parseFlags(c *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-m"})

	fs := flag.NewFlagSet("authserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.HTTPAddr, "a", c.HTTPAddr, "HTTP address and port")
	fs.StringVar(&c.GRPCAddr, "g", c.GRPCAddr, "gRPC address and port")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.JWTSecret, "s", c.JWTSecret, "JWT secret")
	fs.DurationVar(&c.MaintenanceInterval, "m", c.MaintenanceInterval, "maintenance interval")

	return fs.Parse(args)
}
