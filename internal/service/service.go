// Package service manages the bot as a macOS launchd agent: it can
// install itself as a login service, drive it via launchctl, and tail
// its logs.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"

	"github.com/joho/godotenv"

	"github.com/chris/nudge/config"
)

const (
	agentLabel = "com.nudge.agent"
	binDest    = "/usr/local/bin/nudge"
)

func home() string {
	h, _ := os.UserHomeDir()
	return h
}

func agentPlistPath() string {
	return home() + "/Library/LaunchAgents/" + agentLabel + ".plist"
}

func stdoutLogPath() string { return home() + "/Library/Logs/nudge-stdout.log" }
func stderrLogPath() string { return home() + "/Library/Logs/nudge-stderr.log" }

// Install sets the bot up as a login agent: binary into /usr/local/bin,
// config seeded into ~/.nudge, plist written and loaded.
func Install() error {
	if err := installBinary(); err != nil {
		return err
	}
	if err := seedConfig(); err != nil {
		return err
	}
	if err := installAgent(resolveWorkDir()); err != nil {
		return err
	}
	fmt.Println("service loaded and will start on login")
	return nil
}

func installBinary() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating running binary: %w", err)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		return fmt.Errorf("reading %s: %w", exe, err)
	}
	if err := os.MkdirAll("/usr/local/bin", 0755); err != nil {
		return fmt.Errorf("creating /usr/local/bin: %w", err)
	}
	if err := os.WriteFile(binDest, data, 0755); err != nil {
		return fmt.Errorf("installing binary: %w", err)
	}
	fmt.Printf("installed binary to %s\n", binDest)
	return nil
}

// seedConfig copies a local .env into ~/.nudge/config so the agent has
// its tokens after the install directory goes away. An existing config
// is left untouched.
func seedConfig() error {
	configFile := config.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("config already exists at %s\n", configFile)
		return nil
	}
	envData, err := os.ReadFile(".env")
	if err != nil {
		return nil // nothing to seed from
	}
	if err := os.MkdirAll(config.ConfigDir(), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", config.ConfigDir(), err)
	}
	if err := os.WriteFile(configFile, envData, 0600); err != nil {
		return fmt.Errorf("seeding config: %w", err)
	}
	fmt.Printf("seeded config from .env -> %s\n", configFile)
	return nil
}

func installAgent(workDir string) error {
	plist, err := renderPlist(workDir)
	if err != nil {
		return fmt.Errorf("rendering plist: %w", err)
	}

	// Replacing a loaded agent requires an unload first.
	if _, err := os.Stat(agentPlistPath()); err == nil {
		_ = launchctl("unload", agentPlistPath())
	}

	if err := os.MkdirAll(home()+"/Library/LaunchAgents", 0755); err != nil {
		return fmt.Errorf("creating LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(agentPlistPath(), []byte(plist), 0644); err != nil {
		return fmt.Errorf("writing plist: %w", err)
	}
	fmt.Printf("wrote plist to %s\n", agentPlistPath())

	if err := launchctl("load", agentPlistPath()); err != nil {
		return fmt.Errorf("loading plist: %w", err)
	}
	return nil
}

// resolveWorkDir picks the agent's working directory. A relative
// NUDGE_DATA_DIR in the installed config (or none at all, since the
// default is relative) means the bot's data lands wherever it starts,
// so the directory install was run from is kept. An absolute data dir
// makes the working directory irrelevant and ~/.nudge serves fine.
func resolveWorkDir() string {
	env, _ := godotenv.Read(config.ConfigFile())
	dataDir := env["NUDGE_DATA_DIR"]
	if dataDir == "" || dataDir[0] != '/' {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return config.ConfigDir()
}

// Uninstall unloads and removes the agent plist and the binary.
func Uninstall() error {
	if _, err := os.Stat(agentPlistPath()); err == nil {
		if err := launchctl("unload", agentPlistPath()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: unload failed: %v\n", err)
		}
		if err := os.Remove(agentPlistPath()); err != nil {
			return fmt.Errorf("removing plist: %w", err)
		}
		fmt.Printf("removed %s\n", agentPlistPath())
	} else {
		fmt.Println("plist not found, skipping")
	}

	if _, err := os.Stat(binDest); err == nil {
		if err := os.Remove(binDest); err != nil {
			return fmt.Errorf("removing binary: %w", err)
		}
		fmt.Printf("removed %s\n", binDest)
	} else {
		fmt.Println("binary not found in /usr/local/bin, skipping")
	}

	fmt.Println("uninstalled")
	return nil
}

func Start() error { return launchctl("start", agentLabel) }
func Stop() error  { return launchctl("stop", agentLabel) }

func Restart() error {
	_ = Stop()
	return Start()
}

func Status() error {
	cmd := exec.Command("launchctl", "list", agentLabel)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Println("service is not loaded")
	}
	return nil
}

// Logs tails both agent log files.
func Logs() error {
	cmd := exec.Command("tail", "-f", stdoutLogPath(), stderrLogPath())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func launchctl(args ...string) error {
	cmd := exec.Command("launchctl", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("launchctl %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return nil
}

var agentPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinPath}}</string>
		<string>run</string>
	</array>
	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.StdoutLog}}</string>
	<key>StandardErrorPath</key>
	<string>{{.StderrLog}}</string>
</dict>
</plist>
`))

func renderPlist(workDir string) (string, error) {
	var buf bytes.Buffer
	err := agentPlist.Execute(&buf, map[string]string{
		"Label":     agentLabel,
		"BinPath":   binDest,
		"WorkDir":   workDir,
		"StdoutLog": stdoutLogPath(),
		"StderrLog": stderrLogPath(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
