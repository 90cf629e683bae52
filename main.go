package main

import (
	"fmt"
	"os"
	"strconv"

	flag "github.com/ogier/pflag"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/config"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/shell"
)

func main() {
	serverMode := flag.Bool("server", false, "run the HTTP API instead of the shell")
	port := flag.String("port", "", "HTTP port (default from config, 6060)")
	jsonOutput := flag.Bool("json", false, "print shell responses as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: digitalink [--server [--port N]] [--json] [command [args]]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.InitLog()

	cfg, err := config.Load()
	if err != nil {
		log.Error.Fatalln(err)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Error.Fatalln(err)
	}
	defer a.Close()

	if *serverMode {
		p := *port
		if p == "" {
			p = strconv.Itoa(cfg.Server.Port)
		}
		runServerMode(a.plugin, p, cfg.Server.JWTSecret)
		return
	}

	ctx := &shell.ShellCtxt{
		Plugin:     a.plugin,
		Settings:   a.store.Settings(),
		JSONOutput: *jsonOutput,
	}
	if err := shell.RunShell(ctx, flag.Args()); err != nil {
		log.Error.Println("Error: ", err)
		os.Exit(1)
	}
}
