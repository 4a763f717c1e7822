package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/1broseidon/floatdrop/internal/transfer"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

var stdout io.Writer = os.Stdout

func printSuccess(msg string) {
	_, _ = successColor.Fprintf(stdout, "✓ %s\n", msg)
}

func printWarning(msg string) {
	_, _ = warningColor.Fprintf(stdout, "⚠ %s\n", msg)
}

func printError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

func printSection(title string) {
	_, _ = headerColor.Fprintf(stdout, "▸ %s\n", title)
}

func printLabelValue(label, value string) {
	_, _ = labelColor.Fprintf(stdout, "  %-14s ", label+":")
	fmt.Fprintln(stdout, value)
}

// printJSON writes v indented. Used for --json output.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// formatDescriptor renders one transferred file on a single line.
func formatDescriptor(d transfer.FileDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)", d.Name, formatSize(d.Size), d.Category)
	if d.DownloadURL != "" {
		b.WriteString(" ")
		b.WriteString(dimColor.Sprint(d.DownloadURL))
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
