package shell

import (
	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
)

func recognizeCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    "recognize",
		Aliases: []string{"hwr"},
		Help:    "recognize the logged strokes",
		LongHelp: `Usage: recognize [options]

Options:
  --model=<tag>     Model to use (default: the one picked with "use")
  --context=<text>  Text written before the ink
  --width=<N>       Writing area width
  --height=<N>      Writing area height`,
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("recognize", flag.ContinueOnError)
			tag := flagSet.StringP("model", "m", ctx.Model, "model tag")
			preContext := flagSet.String("context", "", "text before the ink")
			width := flagSet.Float64("width", 0, "writing area width")
			height := flagSet.Float64("height", 0, "writing area height")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}

			resp, _ := ctx.Plugin.DoRecognition(ctx.ctx, digitalink.RecognitionOptions{
				Model:   *tag,
				Context: *preContext,
				WritingArea: digitalink.WritingArea{
					W: float32(*width),
					H: float32(*height),
				},
			})
			displayResponse(c, resp, ctx.JSONOutput)
		},
	}
}
