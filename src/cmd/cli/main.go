package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camera-ocr-llm/src/config"
	"camera-ocr-llm/src/ocr"
	"camera-ocr-llm/src/orient"
	"camera-ocr-llm/src/runtimeinit"
	"camera-ocr-llm/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	capture    bool
	source     string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"camera-ocr"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "camera-ocr",
		Short:         "Run OCR on a photo or a single camera capture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.filePath == "") == !opts.capture {
				return fmt.Errorf("exactly one of --file or --camera is required")
			}
			return runWithOptions(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to JPEG or PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.capture, "camera", false, "Capture one photo from the configured camera")
	cmd.Flags().StringVar(&opts.source, "source", "", "Camera source for --camera: device or screen")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")

	return cmd
}

func verbosef(on bool, format string, args ...any) {
	if on {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

func runWithOptions(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}
	verbosef(opts.verbose, "Starting OCR tool")
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			APIKeyPathOverride:   opts.apiKeyPath,
			CameraSourceOverride: opts.source,
		},
		SkipPing: true,
	})
	if err != nil {
		return err
	}
	verbosef(opts.verbose, "Config loaded: engine=%s model=%s", cfg.OCREngine, cfg.Model)
	verbosef(opts.verbose, "Effective API key path: %s", cfg.APIKeyPath)

	rec := runtimeinit.NewRecognizer(cfg)
	deadline := time.Duration(cfg.OCRDeadlineSec) * time.Second
	if opts.capture {
		return captureOCR(ctx, cfg, rec, deadline, opts, stdout)
	}
	return processOCR(ctx, opts.filePath, rec, deadline, cfg.MaxImagePixels, opts, stdout)
}

func captureOCR(ctx context.Context, cfg *config.Config, rec ocr.Recognizer, deadline time.Duration, opts cliOptions, stdout io.Writer) error {
	if cfg.CameraSource == config.SourceFile {
		return fmt.Errorf("--camera needs a live source; use --file for photos")
	}
	cam, err := runtimeinit.NewCamera(cfg)
	if err != nil {
		return err
	}
	if gate := runtimeinit.NewPermission(cfg, nil); !gate.Granted() {
		return fmt.Errorf("camera access not granted; set CAMERA_CONSENT=true")
	}
	verbosef(opts.verbose, "Capturing from %s source", cfg.CameraSource)

	start := time.Now()
	res, err := session.Execute(ctx, session.Options{
		Deadline:   deadline,
		Camera:     cam,
		Recognizer: rec,
		Target:     session.DiscardTarget{},
		CaptureDir: cfg.CaptureDir,
		MaxPixels:  cfg.MaxImagePixels,
		Warmup:     500 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("OCR failed: %w", err)
	}
	return outputResult(stdout, res.Text, "camera:"+cfg.CameraSource, res, time.Since(start), opts.jsonOutput)
}

func readInput(filePath string, verbose bool) ([]byte, error) {
	if filePath == "-" {
		verbosef(verbose, "Reading image from stdin")
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	verbosef(verbose, "Reading image from file: %s", filePath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return data, nil
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// validateImage checks size limits and returns the detected format.
func validateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return "", fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "png", nil
	case bytes.HasPrefix(data, jpegMagic):
		return "jpeg", nil
	}
	return "", fmt.Errorf("input is not a valid JPEG or PNG file (invalid magic number)")
}

func processOCR(ctx context.Context, filePath string, rec ocr.Recognizer, deadline time.Duration, maxPixels int, opts cliOptions, stdout io.Writer) error {
	data, err := readInput(filePath, opts.verbose)
	if err != nil {
		return err
	}
	format, err := validateImage(data)
	if err != nil {
		return err
	}
	verbosef(opts.verbose, "Read %d bytes of %s", len(data), format)

	img, o, err := orient.Upright(data, maxPixels)
	if err != nil {
		return fmt.Errorf("unable to load image: %w", err)
	}
	verbosef(opts.verbose, "EXIF orientation %s, upright size %v", o, img.Bounds().Size())

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	start := time.Now()
	text, err := rec.Recognize(ctx, img)
	elapsed := time.Since(start)
	if err != nil {
		verbosef(opts.verbose, "OCR failed after %v: %v", elapsed, err)
		return fmt.Errorf("OCR failed: %w", err)
	}
	if ocr.IsBlank(text) {
		return fmt.Errorf("OCR failed: %w", session.ErrNoText)
	}
	verbosef(opts.verbose, "OCR completed in %v, extracted %d characters", elapsed, len(text))

	res := session.Result{Text: text, Orientation: o, Size: img.Bounds().Size()}
	return outputResult(stdout, text, filePath, res, elapsed, opts.jsonOutput)
}

type OCRResult struct {
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Timestamp   string  `json:"timestamp"`
	Duration    float64 `json:"duration_seconds"`
	CharCount   int     `json:"character_count"`
	Orientation string  `json:"orientation"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

func newOCRResult(text, source string, res session.Result, elapsed time.Duration, now time.Time) OCRResult {
	return OCRResult{
		Text:        text,
		Source:      source,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Duration:    elapsed.Seconds(),
		CharCount:   len([]rune(text)),
		Orientation: res.Orientation.String(),
		Width:       res.Size.X,
		Height:      res.Size.Y,
	}
}

func outputResult(w io.Writer, text, source string, res session.Result, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(w, text)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(newOCRResult(text, source, res, elapsed, time.Now())); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

var legacyFlags = []string{"file", "camera", "source", "json", "verbose", "api-key-path"}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

