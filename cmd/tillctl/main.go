package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tillcache/till_sdk_go/pkg/till"
)

const usage = `usage: tillctl [-host h] [-port p] [-v] <command> [args]

commands:
  get <key>            print the stored value
  set <key> [value]    store value (read from stdin when omitted)
  exists <key>         exit 0 when the key holds a non-empty value
  ping                 exit 0 when the server is active
`

func main() {
	host := flag.String("host", envOr("TILL_HOST", till.DefaultHost), "Till host")
	port := flag.String("port", envOr("TILL_PORT", till.DefaultPort), "Till port")
	verbose := flag.Bool("v", false, "log swallowed request failures")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	client := till.New(*host, *port, till.WithLogger(log))
	os.Exit(run(context.Background(), client, flag.Args(), os.Stdin, os.Stdout))
}

func run(ctx context.Context, client *till.Client, args []string, stdin io.Reader, stdout io.Writer) int {
	if len(args) == 0 {
		return usageError()
	}
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return usageError()
		}
		value, ok := client.Get(ctx, args[1])
		if !ok {
			return 1
		}
		fmt.Fprint(stdout, value)
		return 0
	case "set":
		if len(args) < 2 || len(args) > 3 {
			return usageError()
		}
		var value string
		if len(args) == 3 {
			value = args[2]
		} else {
			data, err := io.ReadAll(stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
				return 1
			}
			value = string(data)
		}
		client.Set(ctx, args[1], value)
		return 0
	case "exists":
		if len(args) != 2 {
			return usageError()
		}
		if client.Exists(ctx, args[1]) {
			fmt.Fprintln(stdout, "true")
			return 0
		}
		fmt.Fprintln(stdout, "false")
		return 1
	case "ping":
		if client.IsActive(ctx) {
			fmt.Fprintln(stdout, "active")
			return 0
		}
		fmt.Fprintln(stdout, "inactive")
		return 1
	default:
		return usageError()
	}
}

func usageError() int {
	fmt.Fprint(os.Stderr, usage)
	return 2
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
