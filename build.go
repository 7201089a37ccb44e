// build.go - sheetload build script
// Usage: go run build.go [-target=TARGET]
// Targets: all, lambda, server, cli, test, clean

package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const module = "sheetload"

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	Commit  string
	GOARCH  string
}

var (
	distDir = "dist"

	// Executable names (key = source dir name under cmd/, value = output name)
	executables = map[string]string{
		"lambda":    "bootstrap",
		"server":    "sheetload-server",
		"sheetload": "sheetload",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	arch := flag.String("arch", "arm64", "GOARCH for the lambda bundle")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{
		Verbose: *verbose,
		Commit:  gitCommit(),
		GOARCH:  *arch,
	}

	var err error
	switch *target {
	case "all":
		err = buildAll(ctx)
	case "lambda":
		err = buildLambda(ctx)
	case "server":
		err = buildExecutable("server", ctx, nil)
	case "cli":
		err = buildExecutable("sheetload", ctx, nil)
	case "test":
		err = runTests(ctx)
	case "clean":
		err = os.RemoveAll(distDir)
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Printf("%s== %s build ==%s\n", colorCyan, module, colorReset)
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorCyan, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[OK]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARN]%s %s\n", colorYellow, colorReset, msg)
}

func buildAll(ctx *BuildContext) error {
	if err := runTests(ctx); err != nil {
		return err
	}
	if err := buildLambda(ctx); err != nil {
		return err
	}
	if err := buildExecutable("server", ctx, nil); err != nil {
		return err
	}
	return buildExecutable("sheetload", ctx, nil)
}

// buildLambda cross-compiles the function for the provided.al2023 runtime
// and zips the bootstrap binary for upload.
func buildLambda(ctx *BuildContext) error {
	env := []string{"GOOS=linux", "GOARCH=" + ctx.GOARCH, "CGO_ENABLED=0"}
	if err := buildExecutable("lambda", ctx, env); err != nil {
		return err
	}

	bootstrap := filepath.Join(distDir, executables["lambda"])
	bundle := filepath.Join(distDir, "lambda.zip")
	if err := zipFile(bundle, bootstrap, "bootstrap"); err != nil {
		return fmt.Errorf("failed to package lambda: %w", err)
	}
	printSuccess("Packaged " + bundle)
	return nil
}

func buildExecutable(name string, ctx *BuildContext, env []string) error {
	exeName, ok := executables[name]
	if !ok {
		return fmt.Errorf("unknown executable: %s", name)
	}

	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(distDir, exeName)
	ldflags := fmt.Sprintf("-s -w -X %[1]s/pkg/contracts.BuildTime=%[2]s -X %[1]s/pkg/contracts.GitCommit=%[3]s",
		module, time.Now().UTC().Format(time.RFC3339), ctx.Commit)

	args := []string{"build", "-trimpath", "-ldflags", ldflags, "-o", outputPath, "./cmd/" + name}
	if ctx.Verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), env...)
	if ctx.Verbose {
		fmt.Printf("Running: %s go %s\n", strings.Join(env, " "), strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, float64(info.Size())/1024/1024))
	}
	return nil
}

func runTests(ctx *BuildContext) error {
	printInfo("Running tests...")

	args := []string{"test", "-race", "./..."}
	if ctx.Verbose {
		args = append(args, "-v")
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	printSuccess("All tests passed")
	return nil
}

func zipFile(dest, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	// the runtime executes bootstrap directly
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		return err
	}
	return zw.Close()
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		printWarning("git commit unavailable, using \"unknown\"")
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-arch=arm64]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all     Run tests, then build every binary")
	fmt.Println("  lambda  Build dist/bootstrap for linux and zip it as dist/lambda.zip")
	fmt.Println("  server  Build the HTTP server")
	fmt.Println("  cli     Build the local conversion tool")
	fmt.Println("  test    Run go test -race ./...")
	fmt.Println("  clean   Remove dist/")
}
