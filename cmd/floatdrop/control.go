package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/floatdrop/internal/controller"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/ipc"
	"github.com/1broseidon/floatdrop/internal/transfer"
)

// newIPCClient is replaced in tests.
var newIPCClient = func() *ipc.Client { return ipc.NewClient() }

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Show the floating window",
	GroupID: "window",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newIPCClient().Show(); err != nil {
			return err
		}
		printSuccess("window shown")
		return nil
	},
}

var hideCmd = &cobra.Command{
	Use:     "hide",
	Short:   "Hide the floating window",
	GroupID: "window",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newIPCClient().Hide(); err != nil {
			return err
		}
		printSuccess("window hidden")
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:     "toggle",
	Short:   "Toggle window visibility",
	GroupID: "window",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		visible, err := newIPCClient().ToggleVisibility()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ipc.VisibilityData{Visible: visible})
		}
		if visible {
			printSuccess("window shown")
		} else {
			printSuccess("window hidden")
		}
		return nil
	},
}

var minimizeCmd = &cobra.Command{
	Use:     "minimize",
	Short:   "Toggle between the normal and mini window",
	GroupID: "window",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newIPCClient().ToggleMinimize()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(st)
		}
		mode := "normal"
		if st.IsMinimized {
			mode = "mini"
		}
		printSuccess(fmt.Sprintf("window is %s (%dx%d at %d,%d)", mode,
			st.Size.Width, st.Size.Height, st.Position.X, st.Position.Y))
		return nil
	},
}

var smartPositionCmd = &cobra.Command{
	Use:     "smart-position",
	Short:   "Move the window to the corner with the fewest overlaps",
	GroupID: "window",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		moved, err := newIPCClient().SmartPosition()
		if err != nil {
			return err
		}
		if moved {
			printSuccess("window moved")
		} else {
			printSuccess("window already in the best corner")
		}
		return nil
	},
}

var (
	captureRegion  string
	captureHistory bool
)

var captureCmd = &cobra.Command{
	Use:     "capture",
	Short:   "Take a screenshot into the screenshots directory",
	GroupID: "files",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if captureHistory {
			return listScreenshots()
		}
		var region *geometry.Rect
		if captureRegion != "" {
			r, err := parseRegion(captureRegion)
			if err != nil {
				return err
			}
			region = &r
		}

		shot, err := newIPCClient().Capture(region)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(shot)
		}
		printSuccess(fmt.Sprintf("captured %s (%s)", shot.Path, formatSize(shot.Size)))
		return nil
	},
}

func listScreenshots() error {
	shots, err := newIPCClient().ScreenshotHistory()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(shots)
	}
	if len(shots) == 0 {
		printWarning("no screenshots")
		return nil
	}
	for _, s := range shots {
		fmt.Fprintf(stdout, "%10s  %-14s %s\n", formatSize(s.Size), formatAge(s.CreatedAt), s.Path)
	}
	return nil
}

// parseRegion reads "x,y,width,height".
func parseRegion(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("invalid region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	r := geometry.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return geometry.Rect{}, fmt.Errorf("invalid region %q: width and height must be positive", s)
	}
	return r, nil
}

var uploadCmd = &cobra.Command{
	Use:     "upload <file>...",
	Short:   "Upload files to the relay through the daemon",
	GroupID: "files",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := make([]string, 0, len(args))
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return err
			}
			paths = append(paths, abs)
		}

		files, err := newIPCClient().UploadFiles(paths)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(files)
		}
		for _, f := range files {
			printSuccess(formatDescriptor(f))
		}
		if failed := len(paths) - len(files); failed > 0 {
			printWarning(fmt.Sprintf("%d of %d files failed to upload", failed, len(paths)))
		}
		return nil
	},
}

var (
	dragURL  string
	dragName string
	dragText string
)

var dragCmd = &cobra.Command{
	Use:     "drag [file]",
	Short:   "Hand a file or text to the clipboard as a drag payload",
	Long: `Prepares a drag payload and hands it to the system clipboard so it can be
pasted into another application. A local file is offered directly; a relay
file given with --url is downloaded first.`,
	GroupID: "files",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newIPCClient()

		if dragText != "" {
			if err := c.DragToExternal(drag.Payload{Kind: drag.KindText, Text: dragText}); err != nil {
				return err
			}
			printSuccess("text copied")
			return nil
		}

		desc := transfer.FileDescriptor{DownloadURL: dragURL, Name: dragName}
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(abs)
			if err != nil {
				return err
			}
			desc = transfer.DescriptorFor(abs, info.Size(), nil)
		}
		if desc.LocalPath == "" && desc.DownloadURL == "" {
			return fmt.Errorf("a file, --url or --text is required")
		}
		if desc.Name == "" {
			desc.Name = filepath.Base(desc.LocalPath)
		}
		if desc.Category == "" {
			desc.Category = transfer.CategoryOf(desc.Name)
		}
		if desc.MimeType == "" {
			desc.MimeType = transfer.MimeTypeOf(desc.Name)
		}

		payload, err := c.PrepareDragData(desc)
		if err != nil {
			return err
		}
		if err := c.DragToExternal(*payload); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("%s ready to paste (%s)", payload.Path, formatSize(payload.FileSize)))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show daemon and window status",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newIPCClient().GetState()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(st)
		}
		printState(st)
		return nil
	},
}

func printState(st *ipc.StateData) {
	printSection("floatdrop")
	printLabelValue("Relay", st.Status)
	if s, err := controller.ParseStatus(st.Status); err == nil {
		printLabelValue("Tray", s.Tooltip())
	}
	printLabelValue("Uptime", (time.Duration(st.UptimeSeconds) * time.Second).String())
	printLabelValue("Subscribers", fmt.Sprint(st.Subscribers))
	printSection("Window")
	if st.WindowID == 0 {
		printLabelValue("Attached", "no")
	} else {
		printLabelValue("Attached", fmt.Sprintf("0x%x", st.WindowID))
	}
	printLabelValue("Visible", onOff(st.Window.IsVisible))
	printLabelValue("Minimized", onOff(st.Window.IsMinimized))
	printLabelValue("Position", fmt.Sprintf("%d,%d", st.Window.Position.X, st.Window.Position.Y))
	printLabelValue("Size", fmt.Sprintf("%dx%d", st.Window.Size.Width, st.Window.Size.Height))
	autoHide := st.AutoHide
	if st.FadePending {
		autoHide += ", fade pending"
	}
	printLabelValue("Opacity", fmt.Sprintf("%.2f (%s)", st.Window.Opacity, autoHide))
	printLabelValue("Always on top", onOff(st.Window.AlwaysOnTop))
}

var appConfigCmd = &cobra.Command{
	Use:     "app-config",
	Short:   "Show the configuration the running daemon uses",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newIPCClient().GetAppConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cfg)
		}
		printSection("Daemon config")
		printLabelValue("Relay", cfg.APIBaseURL)
		printLabelValue("Max file size", formatSize(cfg.MaxFileSize))
		printLabelValue("Window class", cfg.WindowClass)
		printLabelValue("Scratch", cfg.ScratchDir)
		printLabelValue("Screenshots", cfg.ScreenshotDir)
		printLabelValue("Version", cfg.Version)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Sweep expired files from the scratch directories now",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := newIPCClient().CleanupTemp()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(removed)
		}
		names := make([]string, 0, len(removed))
		for name := range removed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			printLabelValue(name, fmt.Sprintf("%d removed", removed[name]))
		}
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:     "reload",
	Short:   "Ask the daemon to re-read its config file",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newIPCClient().Reload(); err != nil {
			return err
		}
		printSuccess("config reloaded")
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Stream daemon events until interrupted",
	GroupID: "service",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := newIPCClient().Subscribe(ctx, func(ev ipc.StreamEvent) {
			if jsonOutput {
				printJSON(ev)
				return
			}
			ts := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
			fmt.Fprintf(stdout, "%s %s %s\n", dimColor.Sprint(ts), headerColor.Sprint(ev.Type), string(ev.Payload))
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureRegion, "region", "", "capture only x,y,width,height")
	captureCmd.Flags().BoolVar(&captureHistory, "history", false, "list saved screenshots instead of capturing")
	dragCmd.Flags().StringVar(&dragURL, "url", "", "relay download URL of the file")
	dragCmd.Flags().StringVar(&dragName, "name", "", "file name for --url")
	dragCmd.Flags().StringVar(&dragText, "text", "", "drag plain text instead of a file")

	rootCmd.AddCommand(showCmd, hideCmd, toggleCmd, minimizeCmd, smartPositionCmd,
		captureCmd, uploadCmd, dragCmd,
		statusCmd, appConfigCmd, cleanupCmd, reloadCmd, eventsCmd)
}
