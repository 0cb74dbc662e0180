package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/sprite"
	"github.com/oarkflow/sprite/pkg/cache"
	"github.com/oarkflow/sprite/pkg/config"
	"github.com/oarkflow/sprite/pkg/server"
)

func main() {
	sourceFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path to the script file",
		},
		&cli.StringFlag{
			Name:    "eval",
			Aliases: []string{"e"},
			Usage:   "Inline script source",
		},
	}
	app := &cli.App{
		Name:  "sprite",
		Usage: "Run and inspect sprite scripts",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a script",
				ArgsUsage: "[file]",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a config file (YAML, JSON, or BCL)",
					},
					&cli.BoolFlag{
						Name:  "timing",
						Usage: "Report how long the run took",
					},
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the value of the last statement",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Abort the run after this long (0 disables)",
					},
					&cli.IntFlag{
						Name:  "max-depth",
						Usage: "Maximum call depth (0 is unlimited)",
					},
				}, sourceFlags...),
				Action: runScript,
			},
			{
				Name:      "tokens",
				Usage:     "Print the token stream of a script",
				ArgsUsage: "[file]",
				Flags:     sourceFlags,
				Action:    printTokens,
			},
			{
				Name:      "ast",
				Usage:     "Print the parsed program",
				ArgsUsage: "[file]",
				Flags:     sourceFlags,
				Action:    printAST,
			},
			{
				Name:  "serve",
				Usage: "Start the HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a config file (YAML, JSON, or BCL)",
					},
					&cli.StringFlag{
						Name:  "host",
						Usage: "Host to bind the server to",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Port to run the server on",
					},
				},
				Action: startServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func readSource(c *cli.Context) (string, string, error) {
	if src := c.String("eval"); src != "" {
		return src, "<eval>", nil
	}
	path := c.String("file")
	if path == "" {
		path = c.Args().First()
	}
	if path == "" {
		return "", "", cli.Exit("provide a script with --file, --eval, or a path argument", 2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), path, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runScript(c *cli.Context) error {
	source, name, err := readSource(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rc := cfg.RuntimeConfig()
	if c.IsSet("timeout") {
		rc.Timeout = c.Duration("timeout")
	}
	if c.IsSet("max-depth") {
		rc.MaxCallDepth = c.Int("max-depth")
	}
	opts := []sprite.Option{
		sprite.WithOutput(os.Stdout),
		sprite.WithRuntimeConfig(rc),
		sprite.WithGlobals(cfg.Globals),
	}
	if cfg.Cache.Enabled {
		pc, err := cache.New(cfg.Cache.MaxPrograms)
		if err != nil {
			return err
		}
		defer pc.Close()
		opts = append(opts, sprite.WithProgramCache(pc))
	}

	start := time.Now()
	result, err := sprite.Run(context.Background(), source, opts...)
	elapsed := time.Since(start)
	if c.Bool("timing") {
		fmt.Fprintf(os.Stderr, "%s: ran in %s\n", name, elapsed)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s: %v", name, err), 1)
	}
	if c.Bool("print") {
		fmt.Println(result.Inspect())
	}
	return nil
}

func printTokens(c *cli.Context) error {
	source, name, err := readSource(c)
	if err != nil {
		return err
	}
	tokens, err := sprite.Tokenize(source)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s: %v", name, err), 1)
	}
	for _, tok := range tokens {
		fmt.Println(tok.String())
	}
	return nil
}

func printAST(c *cli.Context) error {
	source, name, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := sprite.Parse(source)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s: %v", name, err), 1)
	}
	fmt.Print(program.String())
	return nil
}

func startServer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	addr := cfg.Addr()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		log.Printf("Received signal: %v. Initiating graceful shutdown...", sig)
		return srv.Shutdown()
	}
}
