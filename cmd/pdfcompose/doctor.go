package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/fileutil"
)

const doctorUsage = "Usage: pdfcompose doctor [--json] [-c config]"

// Check levels, worst last.
type level string

const (
	levelOK    level = "ok"
	levelWarn  level = "warn"
	levelError level = "error"
)

// Report statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// Report sections, printed in this order.
var doctorSections = []string{"Config", "Browser", "Runtime", "Staging", "Server"}

// checkResult is one diagnostic line.
type checkResult struct {
	Section string `json:"section"`
	Name    string `json:"name"`
	Level   level  `json:"level"`
	Detail  string `json:"detail"`
}

// doctorReport collects every check the doctor ran.
type doctorReport struct {
	Status   string        `json:"status"`
	Platform string        `json:"platform"`
	Checks   []checkResult `json:"checks"`
}

func (r *doctorReport) add(section, name string, lvl level, format string, args ...any) {
	r.Checks = append(r.Checks, checkResult{
		Section: section,
		Name:    name,
		Level:   lvl,
		Detail:  fmt.Sprintf(format, args...),
	})
}

// count returns how many checks ended at lvl.
func (r *doctorReport) count(lvl level) int {
	n := 0
	for _, c := range r.Checks {
		if c.Level == lvl {
			n++
		}
	}
	return n
}

func (r *doctorReport) settle() {
	switch {
	case r.count(levelError) > 0:
		r.Status = statusErrors
	case r.count(levelWarn) > 0:
		r.Status = statusWarnings
	default:
		r.Status = statusReady
	}
}

// runDoctorCmd checks that compose and serve can run on this machine.
// Warnings still exit 0; any error exits 1.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "")
	configPath := fs.StringP("config", "c", "", "")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(env.Stdout, doctorUsage)
			return ExitSuccess
		}
		fmt.Fprintf(env.Stderr, "error: %v\n%s\n", err, doctorUsage)
		return ExitUsage
	}

	report := diagnose(*configPath, env)

	if *jsonOut {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		printDoctorReport(env.Stdout, report)
	}

	if report.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// diagnose resolves the configuration the way compose and serve do, then
// checks each resource they need.
func diagnose(configPath string, env *Environment) *doctorReport {
	report := &doctorReport{Platform: runtime.GOOS + "/" + runtime.GOARCH}

	cfg, err := loadConfig(configPath, env)
	if err != nil {
		report.add("Config", "load", levelError, "%v", err)
		cfg = config.DefaultConfig()
	} else {
		report.add("Config", "load", levelOK, "%s", configSource(configPath))
	}

	noSandbox := cfg.Render.NoSandbox || os.Getenv("ROD_NO_SANDBOX") == "1"
	bin := firstNonEmpty(cfg.Render.BrowserBin, os.Getenv("ROD_BROWSER_BIN"))

	checkBrowser(report, bin, noSandbox)
	checkRuntime(report, noSandbox)
	checkStaging(report)
	checkServer(report, cfg)

	report.settle()
	return report
}

func configSource(flagPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case os.Getenv(envPrefix+"CONFIG") != "":
		return os.Getenv(envPrefix + "CONFIG")
	default:
		return "defaults"
	}
}

// checkBrowser locates Chrome the same way the render engine does.
func checkBrowser(r *doctorReport, bin string, noSandbox bool) {
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			r.add("Browser", "binary", levelError,
				"Chrome/Chromium not found. Install Chrome or set %sBROWSER_BIN", envPrefix)
			return
		}
		bin = found
	}
	if !fileutil.FileExists(bin) {
		r.add("Browser", "binary", levelError, "Chrome not found at %s", bin)
		return
	}
	r.add("Browser", "binary", levelOK, "%s", bin)

	out, err := exec.Command(bin, "--version").Output() // #nosec G204 -- path from config or rod lookup
	if err != nil {
		r.add("Browser", "version", levelWarn, "could not run %s --version: %v", bin, err)
	} else {
		r.add("Browser", "version", levelOK, "%s", strings.TrimSpace(string(out)))
	}

	if noSandbox {
		r.add("Browser", "sandbox", levelOK, "disabled")
	} else {
		r.add("Browser", "sandbox", levelOK, "enabled")
	}
}

// checkRuntime flags containers and CI runners, where Chrome's sandbox
// usually cannot start.
func checkRuntime(r *doctorReport, noSandbox bool) {
	kind := "container"
	hint, ok := detectContainer()
	if !ok {
		kind = "ci"
		hint, ok = detectCI()
	}
	if !ok {
		return
	}

	r.add("Runtime", kind, levelOK, "detected (%s)", hint)
	if !noSandbox {
		r.add("Runtime", "sandbox", levelWarn,
			"Container/CI detected but the sandbox is on. Set %sNO_SANDBOX=true or pass --no-sandbox", envPrefix)
	}
}

func detectContainer() (string, bool) {
	if os.Getenv(envPrefix+"CONTAINER") == "1" {
		return envPrefix + "CONTAINER=1", true
	}
	if fileutil.FileExists("/.dockerenv") {
		return "/.dockerenv", true
	}
	// Podman and systemd-nspawn
	if v := os.Getenv("container"); v != "" {
		return "container=" + v, true
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "KUBERNETES_SERVICE_HOST", true
	}
	return "", false
}

func detectCI() (string, bool) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(v) != "" {
			return v, true
		}
	}
	return "", false
}

// checkStaging writes a throwaway document through the same temp-file path
// the composer uses before loading a page.
func checkStaging(r *doctorReport) {
	_, cleanup, err := fileutil.WriteTempFile("<!doctype html><p>doctor</p>", "html")
	if err != nil {
		r.add("Staging", "temp dir", levelError, "%s not writable: %v", os.TempDir(), err)
		return
	}
	cleanup()
	r.add("Staging", "temp dir", levelOK, "writable (%s)", os.TempDir())
}

// checkServer reports the pool size serve would use and whether its
// listen address is free.
func checkServer(r *doctorReport, cfg *config.Config) {
	r.add("Server", "workers", levelOK, "%d browser(s)", pdfcompose.ResolvePoolSize(cfg.Server.Workers))

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		lvl := levelWarn
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			lvl = levelError
		}
		r.add("Server", "listen", lvl, "%s unavailable: %v", cfg.Server.Addr, err)
		return
	}
	_ = ln.Close()
	r.add("Server", "listen", levelOK, "%s free", cfg.Server.Addr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var levelTags = map[level]string{
	levelOK:    "[OK]   ",
	levelWarn:  "[WARN] ",
	levelError: "[ERROR]",
}

// printDoctorReport writes the report grouped by section.
func printDoctorReport(w io.Writer, r *doctorReport) {
	fmt.Fprintf(w, "pdfcompose doctor (%s)\n", r.Platform)

	for _, section := range doctorSections {
		header := false
		for _, c := range r.Checks {
			if c.Section != section {
				continue
			}
			if !header {
				fmt.Fprintf(w, "\n%s\n", section)
				header = true
			}
			fmt.Fprintf(w, "  %s %-10s %s\n", levelTags[c.Level], c.Name, c.Detail)
		}
	}
	fmt.Fprintln(w)

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to compose")
	case statusWarnings:
		fmt.Fprintf(w, "Status: Ready with %d warning(s)\n", r.count(levelWarn))
	case statusErrors:
		fmt.Fprintf(w, "Status: Not ready (%d error(s))\n", r.count(levelError))
	}
}
