package shell

import (
	"errors"
	"fmt"

	"github.com/abiosoft/ishell"
)

func useCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name:      "use",
		Help:      "pick the model used for recognition, usage: use <tag>",
		Completer: modelCompleter(ctx),
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("missing model tag"))
				return
			}

			if err := ctx.use(c.Args[0]); err != nil {
				c.Err(err)
				return
			}

			c.Println(fmt.Sprintf("using %s", ctx.Model))
			c.SetPrompt(ctx.prompt())
		},
	}
}

// use resolves tag and remembers its canonical form. It is saved to the
// settings table when one is configured.
func (ctx *ShellCtxt) use(tag string) error {
	h, err := ctx.Plugin.Registry().Resolve(tag)
	if err != nil {
		return err
	}
	ctx.Model = h.Tag().String()

	if ctx.Settings == nil {
		return nil
	}
	if err := ctx.Settings.Set(modelSetting, ctx.Model); err != nil {
		return fmt.Errorf("failed to save model choice: %v", err)
	}
	return nil
}
