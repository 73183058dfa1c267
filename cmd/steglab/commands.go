package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StegLab/pkg/engine"
	"StegLab/pkg/filehandler"
	"StegLab/pkg/models"

	"github.com/docker/go-units"
	"github.com/spf13/pflag"
)

var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(title string, m models.Metrics) {
	if len(m) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, kv := range m {
		fmt.Printf("  %-22s %v\n", kv.Key, kv.Value)
	}
}

func runEmbed(ctx context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("embed")
	carrierKey := fs.StringP("carrier", "c", "", "carrier key (see 'steglab list')")
	method := fs.StringP("method", "m", "", "embed method id")
	cover := fs.StringP("cover", "i", "", "cover file")
	payload := fs.StringP("payload", "p", "", "payload text")
	payloadFile := fs.String("payload-file", "", "read the payload from a file")
	passphrase := fs.String("passphrase", "", "keystream passphrase")
	out := fs.StringP("out", "o", "", "also write the stego file here")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	opts := addOptionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *carrierKey == "" || *method == "" || *cover == "" {
		return usageErrorf("embed needs --carrier, --method and --cover")
	}
	if (*payload == "") == (*payloadFile == "") {
		return usageErrorf("embed needs exactly one of --payload and --payload-file")
	}

	coverBytes, err := filehandler.ReadFileBytes(*cover, 0)
	if err != nil {
		return err
	}
	data := []byte(*payload)
	if *payloadFile != "" {
		if data, err = filehandler.ReadFileBytes(*payloadFile, 0); err != nil {
			return err
		}
	}
	methodOpts, err := opts.methodOptions()
	if err != nil {
		return err
	}

	res, err := e.Embed(ctx, engine.EmbedRequest{
		Carrier:    *carrierKey,
		Method:     *method,
		Cover:      coverBytes,
		Filename:   filepath.Base(*cover),
		Payload:    data,
		Passphrase: *passphrase,
		Options:    methodOpts,
	})
	if err != nil {
		return err
	}
	if *out != "" {
		if err := copyArtifact(ctx, e, res.Artifact.Handle, *out); err != nil {
			return err
		}
	}
	if *asJSON {
		return printJSON(res)
	}

	printSuccess("Embedded %s into %s with %s/%s", units.HumanSize(float64(len(data))), *cover, res.Carrier, res.Method)
	printInfo("Artifact %s (%s, %s)", res.Artifact.Handle, res.Artifact.Filename, units.HumanSize(float64(res.Artifact.Size)))
	if *out != "" {
		printInfo("Written to %s", *out)
	}
	printMetrics("Metrics", res.Metrics)
	return nil
}

func runExtract(ctx context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("extract")
	carrierKey := fs.StringP("carrier", "c", "", "carrier key")
	method := fs.StringP("method", "m", "", "extract method id")
	input := fs.StringP("input", "i", "", "stego file")
	handle := fs.String("handle", "", "stored artifact handle, instead of --input")
	passphrase := fs.String("passphrase", "", "keystream passphrase")
	out := fs.StringP("out", "o", "", "write the payload here")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	opts := addOptionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *carrierKey == "" || *method == "" {
		return usageErrorf("extract needs --carrier and --method")
	}
	if (*input == "") == (*handle == "") {
		return usageErrorf("extract needs exactly one of --input and --handle")
	}

	req := engine.ExtractRequest{Carrier: *carrierKey, Method: *method, Handle: *handle, Passphrase: *passphrase}
	if *input != "" {
		data, err := filehandler.ReadFileBytes(*input, 0)
		if err != nil {
			return err
		}
		req.Data = data
	}
	var err error
	if req.Options, err = opts.methodOptions(); err != nil {
		return err
	}

	res, err := e.Extract(ctx, req)
	if err != nil {
		return err
	}
	if *out != "" && res.Found() {
		if err := filehandler.SaveFile(res.Payload, *out); err != nil {
			return err
		}
	}
	if *asJSON {
		return printJSON(res)
	}

	if !res.Found() {
		printWarning("No payload found with %s/%s", res.Carrier, res.Method)
	} else {
		printSuccess("Recovered %d bytes with %s/%s", res.PayloadBytes, res.Carrier, res.Method)
		if res.Artifact != nil {
			printInfo("Artifact %s (%s)", res.Artifact.Handle, res.Artifact.Filename)
		}
		if *out != "" {
			printInfo("Written to %s", *out)
		}
	}
	printMetrics("Metadata", res.Metadata)
	return nil
}

func runDetect(ctx context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("detect")
	carrierKey := fs.StringP("carrier", "c", "", "carrier key")
	input := fs.StringP("input", "i", "", "file to inspect")
	handle := fs.String("handle", "", "stored artifact handle, instead of --input")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	verbose := fs.BoolP("verbose", "v", false, "print detector statistics")
	opts := addOptionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *carrierKey == "" {
		return usageErrorf("detect needs --carrier")
	}
	if (*input == "") == (*handle == "") {
		return usageErrorf("detect needs exactly one of --input and --handle")
	}

	req := engine.DetectRequest{Carrier: *carrierKey, Handle: *handle}
	if *input != "" {
		data, err := filehandler.ReadFileBytes(*input, 0)
		if err != nil {
			return err
		}
		req.Data = data
	}
	var err error
	if req.Options, err = opts.detectorOptions(); err != nil {
		return err
	}

	report, err := e.Detect(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(report)
	}

	fmt.Println("\n--- Detection Results ---")
	for _, d := range report.Detections {
		displayDetection(d, *verbose)
	}
	fmt.Println("-------------------------")
	if best, ok := report.Highest(); ok {
		printInfo("Strongest signal: %s (%.2f)", best.Detector, *best.Probability)
	}
	printInfo("Detection completed in %v", report.Duration)
	return nil
}

func displayDetection(d models.DetectionResult, verbose bool) {
	switch p := d.Probability; {
	case p == nil:
		printInfo("%-20s not applicable", d.Detector)
	case *p > 0.8:
		printAlert("%-20s HIGH probability of hidden data (%.2f)", d.Detector, *p)
	case *p > 0.5:
		printWarning("%-20s MEDIUM probability of hidden data (%.2f)", d.Detector, *p)
	case *p > 0.2:
		printInfo("%-20s LOW probability of hidden data (%.2f)", d.Detector, *p)
	default:
		printSuccess("%-20s no hidden data detected (%.2f)", d.Detector, *p)
	}
	if verbose {
		for _, kv := range d.Stats {
			fmt.Printf("      %-20s %v\n", kv.Key, kv.Value)
		}
	}
}

func runGet(ctx context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("get")
	out := fs.StringP("out", "o", "", "destination file (default: the artifact file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("get needs exactly one handle")
	}
	handle := fs.Arg(0)

	a, data, err := e.GetArtifact(ctx, handle)
	if err != nil {
		return err
	}
	dest := *out
	if dest == "" {
		dest = a.Name
	}
	if err := filehandler.SaveFile(data, dest); err != nil {
		return err
	}
	printSuccess("Wrote %s (%s, %s, blake3 %s)", dest, a.ContentType, units.HumanSize(float64(a.Size)), a.Digest[:16])
	return nil
}

func copyArtifact(ctx context.Context, e *engine.Engine, handle, dest string) error {
	_, data, err := e.GetArtifact(ctx, handle)
	if err != nil {
		return err
	}
	return filehandler.SaveFile(data, dest)
}

func runList(_ context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	reg := e.Registry()
	fmt.Println("Supported carriers:")
	for _, key := range reg.Keys() {
		c, err := reg.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s  %s\n", successColor(key), c.Description())
		fmt.Printf("  formats:   %s\n", strings.Join(c.Formats(), ", "))
		for _, m := range c.Embedders() {
			fmt.Printf("  embed:     %-20s %s\n", m.Name(), m.Description())
		}
		for _, m := range c.Extractors() {
			fmt.Printf("  extract:   %-20s %s\n", m.Name(), m.Description())
		}
		for _, d := range c.Detectors() {
			fmt.Printf("  detect:    %-20s %s\n", d.Name(), d.Description())
		}
	}
	return nil
}

func runSweep(ctx context.Context, e *engine.Engine, args []string) error {
	fs := newFlagSet("sweep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := e.Sweep(ctx)
	if err != nil {
		return err
	}
	printSuccess("Removed %d expired artifacts from %s", n, e.Store().Root())
	return nil
}
