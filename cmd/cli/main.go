package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmitrijs2005/gophauth/internal/client/cli"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

func run() int {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	conn, err := grpc.NewClient(cfg.ServerEndpointAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		gs.MessageSizeOptions(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer conn.Close()

	app := cli.NewApp(gs.NewClient(conn), cfg.Timeout, os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(context.Background(), args); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
