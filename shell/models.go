package shell

import (
	"github.com/abiosoft/ishell"
)

func modelsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    "models",
		Aliases: []string{"ls"},
		Help:    "list downloaded models",
		Func: func(c *ishell.Context) {
			resp, _ := ctx.Plugin.GetDownloadedModels(ctx.ctx)
			displayResponse(c, resp, ctx.JSONOutput)
		},
	}
}

func catalogCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "catalog",
		Help: "list every model tag that can be downloaded",
		Func: func(c *ishell.Context) {
			reg := ctx.Plugin.Registry()
			def := reg.Default().Tag()
			for _, t := range reg.Catalog().Tags() {
				if t == def {
					c.Printf("%s\t(default)\n", t)
					continue
				}
				c.Println(t.String())
			}
		},
	}
}
