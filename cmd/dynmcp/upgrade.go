package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// githubRelease is the subset of the GitHub releases API this command reads.
type githubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Body    string `json:"body"`
}

func newUpgradeCmd() *cobra.Command {
	var force, quiet bool
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Download and install the latest dynmcp release",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgrade(force, quiet)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even if already up to date")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress release notes")
	return cmd
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the binary saved by the last upgrade",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback()
		},
	}
}

func runUpgrade(force, quiet bool) error {
	fmt.Printf("Checking for updates... (current version: %s)\n", Version)

	latest, err := getLatestRelease()
	if err != nil {
		return fmt.Errorf("fetching latest version: %w", err)
	}

	if !force {
		if strings.TrimPrefix(Version, "v") == strings.TrimPrefix(latest.TagName, "v") {
			fmt.Printf("dynmcp is already up to date (%s).\n", Version)
			return nil
		}
	}

	fmt.Printf("Found new version: %s\n", latest.TagName)
	if latest.Body != "" && !quiet {
		fmt.Printf("\n=== What's new in %s ===\n%s\n===\n\n", latest.TagName, latest.Body)
	}

	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
		return fmt.Errorf("unsupported OS for automatic upgrade: %s", runtime.GOOS)
	}
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		return fmt.Errorf("unsupported architecture for automatic upgrade: %s", runtime.GOARCH)
	}
	platform := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)

	tmpDir, err := os.MkdirTemp("", "dynmcp-upgrade")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	downloadURL := fmt.Sprintf("https://github.com/dynmcp/dynmcp/releases/download/%s/dynmcp-%s.tar.gz", latest.TagName, platform)
	fmt.Printf("Downloading %s...\n", downloadURL)

	tarballPath := filepath.Join(tmpDir, "dynmcp.tar.gz")
	if err := downloadFile(downloadURL, tarballPath); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Println("Extracting...")
	binaryPath, err := extractBinary(tarballPath, tmpDir)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	currentExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	realExe, err := filepath.EvalSymlinks(currentExe)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	backupExe := realExe + ".old"
	if err := os.Rename(realExe, backupExe); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied; re-run with sudo: sudo dynmcp upgrade")
		}
		return fmt.Errorf("moving current binary aside: %w", err)
	}

	if err := copyFile(binaryPath, realExe); err != nil {
		os.Rename(backupExe, realExe)
		return fmt.Errorf("installing new binary: %w", err)
	}
	if err := os.Chmod(realExe, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to chmod new binary: %v\n", err)
	}

	fmt.Printf("Backup of previous version saved at: %s\n", backupExe)
	fmt.Println("To roll back: dynmcp rollback")

	fmt.Println("\nVerifying installation...")
	out, err := exec.Command(realExe, "version").CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to verify installation: %v\n", err)
	} else if installed := strings.TrimSpace(string(out)); strings.Contains(installed, latest.TagName) {
		fmt.Printf("verification successful: %s\n", installed)
	} else {
		fmt.Fprintf(os.Stderr, "verification failed: expected %s, got %s\n", latest.TagName, string(out))
		fmt.Fprintf(os.Stderr, "to restore backup: sudo mv %s %s\n", backupExe, realExe)
		return fmt.Errorf("upgrade verification failed")
	}

	fmt.Printf("\nSuccessfully upgraded to %s\n", latest.TagName)
	return nil
}

func runRollback() error {
	currentExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	realExe, err := filepath.EvalSymlinks(currentExe)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	backupExe := realExe + ".old"
	if _, err := os.Stat(backupExe); os.IsNotExist(err) {
		return fmt.Errorf("no backup found at %s; rollback is only possible after an upgrade", backupExe)
	}

	fmt.Println("Rolling back to previous version...")
	var oldVersion string
	if out, err := exec.Command(backupExe, "version").CombinedOutput(); err == nil {
		oldVersion = strings.TrimSpace(string(out))
	}

	if err := os.Rename(realExe, realExe+".failed"); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied; re-run with sudo: sudo dynmcp rollback")
		}
		return fmt.Errorf("moving current binary aside: %w", err)
	}
	if err := os.Rename(backupExe, realExe); err != nil {
		os.Rename(realExe+".failed", realExe)
		return fmt.Errorf("rollback failed: %w", err)
	}
	os.Remove(realExe + ".failed")

	if oldVersion != "" {
		fmt.Printf("Successfully rolled back to %s\n", oldVersion)
	} else {
		fmt.Println("Successfully rolled back to previous version")
	}
	return nil
}

func getLatestRelease() (*githubRelease, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("https://api.github.com/repos/dynmcp/dynmcp/releases/latest")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status: %s", resp.Status)
	}
	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

func downloadFile(url, dest string) error {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func extractBinary(tarballPath, destDir string) (string, error) {
	f, err := os.Open(tarballPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if filepath.Base(header.Name) != "dynmcp" {
			continue
		}

		destPath := filepath.Join(destDir, "dynmcp-new")
		outFile, err := os.Create(destPath)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			return "", err
		}
		outFile.Close()
		os.Chmod(destPath, 0o755)
		return destPath, nil
	}
	return "", fmt.Errorf("binary 'dynmcp' not found in archive")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
