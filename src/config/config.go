package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	ConfigPathEnvVar  = "CAMERA_OCR_LLM"

	EngineLLM       = "llm"
	EngineTesseract = "tesseract"

	SourceDevice = "device"
	SourceScreen = "screen"
	SourceFile   = "file"

	DefaultMaxImagePixels = 48_000_000
)

type LoadOptions struct {
	APIKeyPathOverride   string
	CameraSourceOverride string
	CameraFileOverride   string
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	BaseURL           string
	Providers         []string
	EnableFileLogging bool
	Hotkey            string
	OCREngine         string
	OCRLanguages      []string
	TesseractVars     map[string]string
	OCRDeadlineSec    int
	CameraSource      string
	CameraDevice      int
	CameraFile        string
	CameraConsent     bool
	CaptureDir        string
	DisplayRotation   int
	MaxImagePixels    int
	CopyToClipboard   bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, CAMERA_OCR_LLM names a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	ocrDeadlineSec := 20
	if v := os.Getenv("OCR_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ocrDeadlineSec = n
		}
	}

	maxPixels := DefaultMaxImagePixels
	if v := os.Getenv("MAX_IMAGE_PIXELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxPixels = n
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             os.Getenv("MODEL"),
		BaseURL:           os.Getenv("OPENROUTER_BASE_URL"),
		Providers:         splitList(os.Getenv("PROVIDERS")),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Hotkey:            getEnvWithDefault("HOTKEY", "Ctrl+Alt+C"),
		OCREngine:         resolveEngine(os.Getenv("OCR_ENGINE")),
		OCRLanguages:      splitList(getEnvWithDefault("OCR_LANGUAGES", "eng")),
		TesseractVars:     parseVars(os.Getenv("OCR_TESSERACT_VARS")),
		OCRDeadlineSec:    ocrDeadlineSec,
		CameraSource:      resolveSourceValue(opts),
		CameraDevice:      getEnvInt("CAMERA_DEVICE", 0),
		CameraFile:        resolveCameraFile(opts),
		CameraConsent:     strings.ToLower(os.Getenv("CAMERA_CONSENT")) == "true",
		CaptureDir:        getEnvWithDefault("CAPTURE_DIR", filepath.Join(os.TempDir(), "camera-ocr")),
		DisplayRotation:   resolveRotation(os.Getenv("DISPLAY_ROTATION")),
		MaxImagePixels:    maxPixels,
		CopyToClipboard:   strings.ToLower(os.Getenv("COPY_TO_CLIPBOARD")) == "true",
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseVars reads "key=value" pairs separated by commas. Pairs without a
// key are skipped.
func parseVars(value string) map[string]string {
	var out map[string]string
	for _, part := range splitList(value) {
		k, v, _ := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func resolveEngine(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case EngineTesseract, "tess":
		return EngineTesseract
	default:
		return EngineLLM
	}
}

func resolveSource(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SourceScreen:
		return SourceScreen
	case SourceFile:
		return SourceFile
	default:
		return SourceDevice
	}
}

func resolveSourceValue(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.CameraSourceOverride); override != "" {
		return resolveSource(override)
	}
	return resolveSource(os.Getenv("CAMERA_SOURCE"))
}

func resolveCameraFile(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.CameraFileOverride); override != "" {
		return override
	}
	return strings.TrimSpace(os.Getenv("CAMERA_FILE"))
}

// resolveRotation accepts 0/90/180/270 and falls back to 0.
func resolveRotation(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	switch n {
	case 0, 90, 180, 270:
		return n
	default:
		return 0
	}
}
