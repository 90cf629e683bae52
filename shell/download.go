package shell

import (
	"errors"

	"github.com/abiosoft/ishell"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
)

func downloadCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name:      "download",
		Aliases:   []string{"get"},
		Help:      "download models, usage: download <tag> [tag...]",
		Completer: modelCompleter(ctx),
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("missing model tag"))
				return
			}
			ctx.ensureInit(c)

			var call *digitalink.Call
			var err error
			if len(c.Args) == 1 {
				call, err = ctx.Plugin.DownloadSingularModel(ctx.ctx, c.Args[0])
			} else {
				call, err = ctx.Plugin.DownloadMultipleModels(ctx.ctx, c.Args)
			}
			if err != nil {
				c.Err(err)
				return
			}
			displayCall(c, call, ctx.JSONOutput)
		},
	}
}
