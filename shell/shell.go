package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/store"
)

// modelSetting is the settings key that remembers the model picked with
// "use" across sessions.
const modelSetting = "shell.model"

type ShellCtxt struct {
	Plugin   *digitalink.Plugin
	Settings *store.SettingsRepository
	// Model is passed to recognition when no --model flag is given. Empty
	// means the plugin default.
	Model      string
	JSONOutput bool

	ctx         context.Context
	initialized bool
}

func (ctx *ShellCtxt) prompt() string {
	m := ctx.Model
	if m == "" {
		m = ctx.Plugin.Registry().Default().Tag().String()
	}
	return fmt.Sprintf("[%s]>", m)
}

// ensureInit initializes the plugin once per shell, so one-shot commands
// like "digitalink download fr-FR" work without an explicit "init".
func (ctx *ShellCtxt) ensureInit(c printer) {
	if ctx.initialized {
		return
	}
	resp := ctx.Plugin.InitializePlugin(ctx.ctx)
	ctx.initialized = true
	if !ctx.JSONOutput {
		c.Println(resp.Msg)
	}
}

func (ctx *ShellCtxt) loadModel() {
	if ctx.Model != "" || ctx.Settings == nil {
		return
	}
	if v, err := ctx.Settings.Get(modelSetting); err == nil {
		ctx.Model = v
	}
}

// modelCompleter suggests catalog tags, skipping the ones already typed.
func modelCompleter(ctx *ShellCtxt) func([]string) []string {
	return func(args []string) []string {
		seen := make(map[string]bool, len(args))
		for _, a := range args {
			seen[strings.ToLower(a)] = true
		}
		var out []string
		for _, t := range ctx.Plugin.Registry().Catalog().Tags() {
			if !seen[strings.ToLower(t.String())] {
				out = append(out, t.String())
			}
		}
		sort.Strings(out)
		return out
	}
}

func RunShell(ctx *ShellCtxt, args []string) error {
	if ctx.ctx == nil {
		ctx.ctx = context.Background()
	}
	ctx.loadModel()

	shell := ishell.New()
	shell.SetPrompt(ctx.prompt())

	shell.AddCmd(initCmd(ctx))
	shell.AddCmd(eraseCmd(ctx))
	shell.AddCmd(strokeCmd(ctx))
	shell.AddCmd(recognizeCmd(ctx))
	shell.AddCmd(downloadCmd(ctx))
	shell.AddCmd(rmCmd(ctx))
	shell.AddCmd(modelsCmd(ctx))
	shell.AddCmd(catalogCmd(ctx))
	shell.AddCmd(useCmd(ctx))
	shell.AddCmd(refreshCmd(ctx))

	if len(args) > 0 {
		return shell.Process(args...)
	}

	shell.Println("digitalink shell, type help for commands")
	shell.Run()
	return nil
}
