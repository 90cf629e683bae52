package shell

import (
	"encoding/json"
	"errors"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
)

// printer is the part of ishell.Context the commands write to.
type printer interface {
	Println(val ...interface{})
	Printf(format string, val ...interface{})
	Err(err error)
}

func displayResponseJSON(c printer, resp digitalink.Response) error {
	output, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	c.Println(string(output))
	return nil
}

func displayResponse(c printer, resp digitalink.Response, jsonOut bool) {
	if jsonOut {
		if err := displayResponseJSON(c, resp); err != nil {
			c.Err(err)
		}
		return
	}

	if !resp.OK {
		c.Err(errors.New(resp.Msg))
		return
	}
	c.Println(resp.Msg)

	if resp.Results != nil {
		for i, text := range resp.Results.Candidates {
			var score float32
			if i < len(resp.Results.Scores) {
				score = resp.Results.Scores[i]
			}
			c.Printf("%2d. %s\t%.3f\n", i+1, text, score)
		}
	}
	for _, m := range resp.Models {
		c.Printf("  %s\n", m)
	}
}

// displayCall prints every response of a call until it finishes. A
// call superseded by another is reported like any other terminal response.
func displayCall(c printer, call *digitalink.Call, jsonOut bool) {
	for resp := range call.Responses() {
		displayResponse(c, resp, jsonOut)
	}
}
