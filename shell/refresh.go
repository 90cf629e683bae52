package shell

import (
	"github.com/abiosoft/ishell"
)

func refreshCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "refresh",
		Help: "re-query the device for downloaded models",
		Func: func(c *ishell.Context) {
			set, err := ctx.Plugin.Registry().RefreshDownloadedSet(ctx.ctx)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("downloaded: %d\n", set.Len())
			for _, t := range set.Strings() {
				c.Printf("  %s\n", t)
			}
		},
	}
}
