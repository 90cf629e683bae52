package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/hwr"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
)

func main() {
	inputName := flag.String("i", "", "file to convert, - for stdin")
	outputName := flag.String("o", "", "output file name")
	extract := flag.String("e", "", "extract, b - recognizer batch from strokes, r - candidates from a recognizer response")
	lang := flag.String("l", "", "model tag (default: catalog default)")
	preContext := flag.String("c", "", "text written before the ink")
	width := flag.Float64("w", 0, "writing area width")
	height := flag.Float64("h", 0, "writing area height")
	flag.Parse()
	var err error

	switch *extract {

	case "r":
		err = candidates(*inputName, *outputName)
	case "":
		fallthrough
	case "b":
		rc := recognizer.Context{
			PreContext:  *preContext,
			WritingArea: recognizer.WritingArea{Width: float32(*width), Height: float32(*height)},
		}
		err = batch(*inputName, *outputName, *lang, rc)
	default:
		err = fmt.Errorf("unknown extract mode %q", *extract)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readInput(inputName string) ([]byte, error) {
	if inputName == "" {
		return nil, errors.New("missing input file, use -i")
	}
	if inputName == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(inputName)
}

func createOutput(inputName, outputName, ext string) (io.WriteCloser, error) {
	if outputName == "" {
		if inputName == "-" {
			return nopCloser{os.Stdout}, nil
		}
		nameOnly := strings.TrimSuffix(inputName, filepath.Ext(inputName))
		outputName = nameOnly + ext
	}
	if outputName == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outputName)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// parseStrokes accepts either one stroke object or a list of them, in the
// same shape logStrokes takes.
func parseStrokes(data []byte) (ink.Ink, error) {
	var list []digitalink.Strokes
	if err := json.Unmarshal(data, &list); err != nil {
		var one digitalink.Strokes
		if err := json.Unmarshal(data, &one); err != nil {
			return ink.Ink{}, fmt.Errorf("can't parse strokes: %v", err)
		}
		list = []digitalink.Strokes{one}
	}

	strokes := make([]ink.Stroke, 0, len(list))
	for i, s := range list {
		st, err := ink.NewStroke(s.X, s.Y, s.T)
		if err != nil {
			return ink.Ink{}, fmt.Errorf("stroke %d: %v", i, err)
		}
		strokes = append(strokes, st)
	}
	return ink.New(strokes...), nil
}

func batch(inputName, outputName, lang string, rc recognizer.Context) error {
	data, err := readInput(inputName)
	if err != nil {
		return err
	}
	in, err := parseStrokes(data)
	if err != nil {
		return err
	}

	reg, err := model.NewRegistry(model.DefaultCatalog(), nil, "")
	if err != nil {
		return err
	}
	h := reg.Default()
	if lang != "" {
		if h, err = reg.Resolve(lang); err != nil {
			return err
		}
	}

	out, err := createOutput(inputName, outputName, ".batch.json")
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(hwr.BuildBatch(hwr.Lang(h.Tag()), in, rc))
}

func candidates(inputName, outputName string) error {
	data, err := readInput(inputName)
	if err != nil {
		return err
	}
	res, err := hwr.ParseResponse(data)
	if err != nil {
		return err
	}

	out, err := createOutput(inputName, outputName, ".txt")
	if err != nil {
		return err
	}
	defer out.Close()

	for i, c := range res.Candidates {
		if c.Score != nil {
			fmt.Fprintf(out, "%d\t%s\t%.3f\n", i+1, c.Text, *c.Score)
			continue
		}
		fmt.Fprintf(out, "%d\t%s\n", i+1, c.Text)
	}
	return nil
}
