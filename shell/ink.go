package shell

import (
	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
)

func initCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "init",
		Help: "initialize the plugin",
		Func: func(c *ishell.Context) {
			resp := ctx.Plugin.InitializePlugin(ctx.ctx)
			ctx.initialized = true
			displayResponse(c, resp, ctx.JSONOutput)
		},
	}
}

func eraseCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "erase",
		Help: "discard logged strokes",
		Func: func(c *ishell.Context) {
			displayResponse(c, ctx.Plugin.Erase(), ctx.JSONOutput)
		},
	}
}

func strokeCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "stroke",
		Help: "log a stroke, usage: stroke --x 1,2,3 --y 4,5,6 [--t 0,10,20]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("stroke", flag.ContinueOnError)
			xs := flagSet.String("x", "", "comma separated x coordinates")
			ys := flagSet.String("y", "", "comma separated y coordinates")
			ts := flagSet.String("t", "", "comma separated timestamps in ms")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}

			s, err := strokeFromFlags(*xs, *ys, *ts)
			if err != nil {
				c.Err(err)
				return
			}

			resp, _ := ctx.Plugin.LogStrokes(s)
			displayResponse(c, resp, ctx.JSONOutput)
		},
	}
}

func strokeFromFlags(xs, ys, ts string) (digitalink.Strokes, error) {
	var s digitalink.Strokes
	var err error
	if s.X, err = parseFloats(xs); err != nil {
		return s, err
	}
	if s.Y, err = parseFloats(ys); err != nil {
		return s, err
	}
	if s.T, err = parseTimes(ts); err != nil {
		return s, err
	}
	return s, nil
}
