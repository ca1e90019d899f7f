package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
	"github.com/guiyumin/mediasnap/internal/server"
)

var (
	servePort   int
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that resolves links and relays streams via API.

Examples:
  mediasnap serve              # Start server on port 8080
  mediasnap serve -p 9000      # Start server on port 9000
  mediasnap serve -d           # Start server as background daemon
  mediasnap serve stop         # Stop the daemon

API Endpoints:
  GET    /api/health         # Health check
  POST   /api/resolve        # Resolve a link
  POST   /api/formats        # List YouTube formats
  GET    /api/stream         # Relay a YouTube format as a download
  POST   /api/jobs           # Queue a resolution
  GET    /api/jobs/:id       # Get job status
  GET    /api/jobs           # List all jobs
  DELETE /api/jobs/:id       # Cancel or remove a job
  DELETE /api/jobs           # Clear finished jobs`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"stop", "status"},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				if err := defaultDaemon().stop(); err != nil {
					exitWithError(err)
				}
				return
			case "status":
				if err := defaultDaemon().status(); err != nil {
					exitWithError(err)
				}
				return
			default:
				exitWithError(fmt.Errorf("unknown serve action: %s", args[0]))
			}
		}

		if err := runServe(); err != nil {
			exitWithError(err)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.LoadOrDefault()

	// flag > config > default
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	if serveDaemon {
		return defaultDaemon().start(cfg.ListenPort())
	}
	return runServer(cfg)
}

func runServer(cfg *config.Config) error {
	log := cfg.Log.NewLogger()
	srv := server.NewServer(cfg, resolve.New(cfg, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(shutdownCtx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// daemon tracks a background server through a state file holding its PID
// and port
type daemon struct {
	statePath string
	logPath   string
}

type daemonState struct {
	pid  int
	port int
}

func defaultDaemon() *daemon {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return &daemon{
		statePath: filepath.Join(dir, "serve.pid"),
		logPath:   filepath.Join(dir, "serve.log"),
	}
}

func (d *daemon) save(st daemonState) error {
	if err := os.MkdirAll(filepath.Dir(d.statePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(d.statePath, []byte(fmt.Sprintf("%d\n%d\n", st.pid, st.port)), 0644)
}

// load returns the recorded state, or false when there is none
func (d *daemon) load() (daemonState, bool) {
	data, err := os.ReadFile(d.statePath)
	if err != nil {
		return daemonState{}, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return daemonState{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return daemonState{}, false
	}
	st := daemonState{pid: pid}
	if len(fields) > 1 {
		st.port, _ = strconv.Atoi(fields[1])
	}
	return st, true
}

func (d *daemon) clear() {
	os.Remove(d.statePath)
}

// running returns the live daemon state, removing a stale state file
func (d *daemon) running() (daemonState, bool) {
	st, ok := d.load()
	if !ok {
		return daemonState{}, false
	}
	if !processExists(st.pid) {
		d.clear()
		return daemonState{}, false
	}
	return st, true
}

func (d *daemon) start(port int) error {
	if st, ok := d.running(); ok {
		return fmt.Errorf("daemon already running (PID %d)", st.pid)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logFile, err := os.OpenFile(d.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(executable, "serve", "-p", strconv.Itoa(port))
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	if err := d.save(daemonState{pid: cmd.Process.Pid, port: port}); err != nil {
		cmd.Process.Kill()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	fmt.Printf("%s (PID %d)\n", color.GreenString("mediasnap server started"), cmd.Process.Pid)
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Log:  %s\n", d.logPath)
	fmt.Println(hintStyle.Render("\nUse 'mediasnap serve stop' to stop the daemon"))
	return nil
}

func (d *daemon) stop() error {
	st, ok := d.running()
	if !ok {
		return fmt.Errorf("daemon is not running")
	}
	defer d.clear()

	process, err := os.FindProcess(st.pid)
	if err != nil {
		return fmt.Errorf("daemon process not found")
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// The server drains for up to 10s
	deadline := time.Now().Add(11 * time.Second)
	for processExists(st.pid) && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("Daemon stopped")
	return nil
}

func (d *daemon) status() error {
	st, ok := d.running()
	if !ok {
		fmt.Println("Daemon is not running")
		return nil
	}

	health := color.YellowString("not responding")
	if st.port > 0 && probeHealth(st.port) {
		health = color.GreenString("healthy")
	}
	fmt.Printf("Daemon is running (PID %d, port %d, %s)\n", st.pid, st.port, health)
	fmt.Printf("Log file: %s\n", d.logPath)
	return nil
}

// probeHealth reports whether a server answers on the local port
func probeHealth(port int) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks liveness
	return process.Signal(syscall.Signal(0)) == nil
}
