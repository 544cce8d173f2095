// internal/browser/launcher.go
package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// serverlessEnvMarkers are variables set by managed function platforms.
var serverlessEnvMarkers = []string{
	"AWS_LAMBDA_FUNCTION_NAME",
	"AWS_EXECUTION_ENV",
	"VERCEL",
	"FUNCTIONS_WORKER_RUNTIME",
	"K_SERVICE",
}

// localCandidates are looked up on PATH when no executable is configured.
var localCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// serverlessFlags keep a single-process browser alive inside small sandboxes.
var serverlessFlags = []string{
	"single-process",
	"no-zygote",
	"no-sandbox",
	"disable-gpu",
	"disable-dev-shm-usage",
}

const defaultServerlessPath = "/opt/chromium/chromium"

var errNoExecutable = errors.New("no Chrome or Chromium executable found")

// Launcher describes how one launch strategy starts the browser.
type Launcher interface {
	Mode() string
	Plan() (LaunchPlan, error)
}

// LaunchPlan is the declarative form of a launch: which binary and which
// command-line flags. Keeping it separate from chromedp options lets tests
// inspect exactly what will be passed to the process.
type LaunchPlan struct {
	Mode         string
	ExecPath     string
	// WithDefaults prepends chromedp.DefaultExecAllocatorOptions.
	WithDefaults bool
	Flags        map[string]interface{}
	Width        int
	Height       int
}

// AllocatorOptions converts the plan into chromedp allocator options.
func (p LaunchPlan) AllocatorOptions() []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	if p.WithDefaults {
		opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	opts = append(opts, chromedp.ExecPath(p.ExecPath))
	for name, value := range p.Flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if p.Width > 0 && p.Height > 0 {
		opts = append(opts, chromedp.WindowSize(p.Width, p.Height))
	}
	return opts
}

// Environment abstracts process lookups so detection can be tested.
type Environment struct {
	Getenv   func(string) string
	LookPath func(string) (string, error)
	Stat     func(string) (os.FileInfo, error)
}

// OSEnvironment reads the real process environment.
func OSEnvironment() Environment {
	return Environment{Getenv: os.Getenv, LookPath: exec.LookPath, Stat: os.Stat}
}

// DetectMode resolves "auto" to a concrete strategy.
func DetectMode(mode config.BrowserMode, env Environment) config.BrowserMode {
	if mode != config.BrowserModeAuto && mode != "" {
		return mode
	}
	for _, key := range serverlessEnvMarkers {
		if env.Getenv(key) != "" {
			return config.BrowserModeServerless
		}
	}
	return config.BrowserModeLocal
}

// NewLauncher selects the strategy for the configured mode. It runs once per
// Manager, not per session.
func NewLauncher(cfg config.BrowserConfig, env Environment) Launcher {
	if DetectMode(cfg.Mode, env) == config.BrowserModeServerless {
		return &ServerlessLauncher{cfg: cfg, env: env}
	}
	return &LocalLauncher{cfg: cfg, env: env}
}

// LocalLauncher drives a locally installed Chrome or Chromium.
type LocalLauncher struct {
	cfg config.BrowserConfig
	env Environment
}

func (l *LocalLauncher) Mode() string { return string(config.BrowserModeLocal) }

// ExecPath returns the configured binary, or the first candidate on PATH.
func (l *LocalLauncher) ExecPath() (string, error) {
	if l.cfg.ExecutablePath != "" {
		if _, err := l.env.Stat(l.cfg.ExecutablePath); err != nil {
			return "", fmt.Errorf("configured executable %s: %w", l.cfg.ExecutablePath, err)
		}
		return l.cfg.ExecutablePath, nil
	}
	for _, name := range localCandidates {
		if path, err := l.env.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errNoExecutable
}

func (l *LocalLauncher) Plan() (LaunchPlan, error) {
	path, err := l.ExecPath()
	if err != nil {
		return LaunchPlan{}, &schemas.LaunchError{Mode: l.Mode(), Err: err}
	}

	flags := map[string]interface{}{
		"headless":                  l.cfg.Headless,
		"ignore-certificate-errors": l.cfg.IgnoreTLSErrors,
		"disable-extensions":        true,
	}
	// Containers on Linux rarely allow the setuid sandbox or a large /dev/shm.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}
	mergeFlags(flags, l.cfg.Args)

	return LaunchPlan{
		Mode:         l.Mode(),
		ExecPath:     path,
		WithDefaults: true,
		Flags:        flags,
		Width:        l.cfg.ViewportWidth,
		Height:       l.cfg.ViewportHeight,
	}, nil
}

// ServerlessLauncher drives the packaged Chromium shipped with a function
// bundle, using the restricted flag set those sandboxes require.
type ServerlessLauncher struct {
	cfg config.BrowserConfig
	env Environment
}

func (s *ServerlessLauncher) Mode() string { return string(config.BrowserModeServerless) }

// ExecPath prefers the configured path, then CHROMIUM_PATH, then the
// conventional layer location.
func (s *ServerlessLauncher) ExecPath() string {
	if p := s.cfg.Serverless.ExecutablePath; p != "" && p != defaultServerlessPath {
		return p
	}
	if p := s.env.Getenv("CHROMIUM_PATH"); p != "" {
		return p
	}
	if p := s.cfg.Serverless.ExecutablePath; p != "" {
		return p
	}
	return defaultServerlessPath
}

func (s *ServerlessLauncher) Plan() (LaunchPlan, error) {
	path := s.ExecPath()
	if _, err := s.env.Stat(path); err != nil {
		return LaunchPlan{}, &schemas.LaunchError{Mode: s.Mode(), Err: fmt.Errorf("packaged browser %s: %w", path, err)}
	}

	headless := s.cfg.Serverless.HeadlessMode
	if headless == "" {
		headless = "new"
	}

	flags := map[string]interface{}{
		"headless":                  headless,
		"no-first-run":              true,
		"no-default-browser-check":  true,
		"hide-scrollbars":           true,
		"mute-audio":                true,
		"use-gl":                    "swiftshader",
		"ignore-certificate-errors": s.cfg.IgnoreTLSErrors,
	}
	for _, f := range serverlessFlags {
		flags[f] = true
	}
	mergeFlags(flags, s.cfg.Serverless.Args)

	return LaunchPlan{
		Mode:     s.Mode(),
		ExecPath: path,
		Flags:    flags,
		Width:    s.cfg.ViewportWidth,
		Height:   s.cfg.ViewportHeight,
	}, nil
}

// mergeFlags adds "--name" and "--name=value" strings to flags, overriding
// earlier entries.
func mergeFlags(flags map[string]interface{}, args []string) {
	for _, arg := range args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			flags[name] = value
			continue
		}
		flags[arg] = true
	}
}
