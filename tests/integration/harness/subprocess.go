// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 OpenCloudMesh Authors

// Package harness provides test utilities for integration tests.
package harness

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// SubprocessServer represents a server running as a subprocess.
type SubprocessServer struct {
	Name       string
	TempDir    string
	BaseURL    string
	Port       int
	binaryPath string
	cmd        *exec.Cmd
	logFile    *os.File
	configFile string
}

// SubprocessConfig contains configuration for starting a subprocess server.
type SubprocessConfig struct {
	Name        string
	Mode        string // dev or strict
	ExtraConfig string // Additional TOML config to append
}

// BuildBinary builds the pairinbox-go binary for testing.
// Returns the path to the built binary.
func BuildBinary(t *testing.T) string {
	t.Helper()

	// Build to temp location
	tempDir, err := os.MkdirTemp("", "pairinbox-build-*")
	if err != nil {
		t.Fatalf("failed to create temp dir for binary: %v", err)
	}

	binaryName := "pairinbox-go"
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath := filepath.Join(tempDir, binaryName)

	// Run go build
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pairinbox-go")
	cmd.Dir = findProjectRoot(t)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\nOutput: %s", err, output)
	}

	// Register cleanup
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	return binaryPath
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// StartSubprocessServer starts a server as a subprocess with the given config.
func StartSubprocessServer(t *testing.T, binaryPath string, cfg SubprocessConfig) *SubprocessServer {
	t.Helper()

	// Create temp directory for this server
	tempDir, err := os.MkdirTemp("", "pairinbox-subprocess-"+cfg.Name+"-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	if cfg.Mode == "" {
		cfg.Mode = "dev"
	}

	// Get a free port
	port, err := getFreePort()
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to get free port: %v", err)
	}

	// Create config file
	configPath := filepath.Join(tempDir, "config.toml")
	configContent := generateTOMLConfig(port, filepath.Join(tempDir, "data"), cfg.Mode, cfg.ExtraConfig)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to write config file: %v", err)
	}

	// Create log file
	logPath := filepath.Join(tempDir, "server.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create log file: %v", err)
	}

	srv := &SubprocessServer{
		Name:       cfg.Name,
		TempDir:    tempDir,
		BaseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:       port,
		binaryPath: binaryPath,
		logFile:    logFile,
		configFile: configPath,
	}

	if err := srv.launch(); err != nil {
		srv.DumpLogs(t)
		srv.Stop(t)
		t.Fatalf("server %s failed to start: %v", cfg.Name, err)
	}

	t.Logf("Started subprocess server %s at %s (port %d)", cfg.Name, srv.BaseURL, port)

	return srv
}

// launch starts the binary against the existing config and data directory
// and waits until it serves.
func (s *SubprocessServer) launch() error {
	cmd := exec.Command(s.binaryPath, "--config", s.configFile)
	cmd.Stdout = s.logFile
	cmd.Stderr = s.logFile
	cmd.Dir = s.TempDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start subprocess: %w", err)
	}
	s.cmd = cmd

	return waitForServerReady(s.BaseURL, 10*time.Second)
}

// halt interrupts the process and waits for it, killing it after 5s.
func (s *SubprocessServer) halt() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	// Send interrupt signal for graceful shutdown
	s.cmd.Process.Signal(os.Interrupt)

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.cmd.Process.Kill()
		<-done
	}
	s.cmd = nil
}

// Restart stops the process and starts it again on the same port, config
// and data directory.
func (s *SubprocessServer) Restart(t *testing.T) {
	t.Helper()

	s.halt()
	if err := s.launch(); err != nil {
		s.DumpLogs(t)
		t.Fatalf("server %s failed to restart: %v", s.Name, err)
	}
}

// Stop stops the subprocess server and cleans up resources. Safe to call
// more than once.
func (s *SubprocessServer) Stop(t *testing.T) {
	t.Helper()

	s.halt()

	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}

	if s.TempDir != "" {
		os.RemoveAll(s.TempDir)
		s.TempDir = ""
	}
}

// DumpLogs outputs the server logs to the test log.
func (s *SubprocessServer) DumpLogs(t *testing.T) {
	t.Helper()

	logPath := filepath.Join(s.TempDir, "server.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Logf("failed to read logs for %s: %v", s.Name, err)
		return
	}

	t.Logf("=== Logs for server %s ===\n%s\n=== End logs ===", s.Name, string(content))
}

// generateTOMLConfig creates a TOML config for a test server. The ui state
// lives in a json file under dataDir so restarts can be observed.
func generateTOMLConfig(port int, dataDir, mode, extra string) string {
	// Top-level keys must come before any [section] headers in TOML
	config := fmt.Sprintf(`mode = "%s"
listen_addr = "127.0.0.1:%d"
external_base_path = ""

[server]
trusted_proxies = ["127.0.0.0/8", "::1/128"]

[logging]
level = "debug"

[store]
driver = "json"
data_dir = %q

[cache]
driver = "memory"
`, mode, port, dataDir)

	if extra != "" {
		config += "\n" + extra
	}

	return config
}
