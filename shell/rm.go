package shell

import (
	"errors"

	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
)

func rmCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name:      "rm",
		Help:      "delete downloaded models, usage: rm [-a] [tag...]",
		Completer: modelCompleter(ctx),
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("rm", flag.ContinueOnError)
			all := flagSet.BoolP("all", "a", false, "delete every downloaded model")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}

			opts, err := deleteOptions(flagSet.Args(), *all)
			if err != nil {
				c.Err(err)
				return
			}
			ctx.ensureInit(c)

			call, err := ctx.Plugin.DeleteModel(ctx.ctx, opts)
			if err != nil {
				c.Err(err)
				return
			}
			displayCall(c, call, ctx.JSONOutput)
		},
	}
}

func deleteOptions(args []string, all bool) (digitalink.DeleteOptions, error) {
	switch {
	case len(args) == 1:
		return digitalink.DeleteOptions{Model: args[0]}, nil
	case len(args) > 1:
		return digitalink.DeleteOptions{Models: args}, nil
	case all:
		return digitalink.DeleteOptions{All: true}, nil
	}
	return digitalink.DeleteOptions{}, errors.New("missing model tag, or -a for all")
}
