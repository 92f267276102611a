package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"quote-ticker/src/config"
	"quote-ticker/src/grpc_control"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const usage = `usage: quotectl [flags] <command>

commands:
  status                 engine and provider counters
  settings               current settings
  set                    update settings (-symbols, -interval, -key)
  refresh [SYM ...]      force a refresh, optionally of the given symbols
`

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	addr := flag.String("addr", "", "control server address, defaults to grpc_host:grpc_port")
	symbols := flag.String("symbols", "", "comma separated symbols for set")
	interval := flag.Float64("interval", -1, "refresh interval in minutes for set")
	key := flag.String("key", "", "alpha vantage api key for set, use - to clear")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// 2. Resolve target
	target := *addr
	if target == "" {
		cfg, err := config.NewConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		target = fmt.Sprintf("%s:%d", cfg.GrpcHost, cfg.GrpcPort)
	}

	// 3. Dial
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", target, err)
		os.Exit(1)
	}
	defer conn.Close()
	client := grpc_control.NewQuoteControlClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 4. Run command
	opts := setOptions{Symbols: *symbols, Interval: *interval, Key: *key}
	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:], opts); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func run(ctx context.Context, client *grpc_control.QuoteControlClient, cmd string, args []string, opts setOptions) error {
	switch cmd {
	case "status":
		out, err := client.GetStatus(ctx)
		return printJSON(out, err)
	case "settings":
		out, err := client.GetSettings(ctx)
		return printJSON(out, err)
	case "set":
		req, err := buildUpdate(opts)
		if err != nil {
			return err
		}
		out, err := client.UpdateSettings(ctx, req)
		return printJSON(out, err)
	case "refresh":
		req, err := buildRefresh(args)
		if err != nil {
			return err
		}
		out, err := client.RefreshQuotes(ctx, req)
		return printJSON(out, err)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(msg proto.Message, err error) error {
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
