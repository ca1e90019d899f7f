package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/extractor"
	"github.com/guiyumin/mediasnap/internal/core/i18n"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
	"github.com/guiyumin/mediasnap/internal/core/version"
)

var (
	jsonOutput bool
	inputFile  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mediasnap [url]",
	Short: "Resolve Instagram, StarMaker and YouTube links to downloadable media",
	Long: `Resolve a media link to a directly fetchable URL, or to the list of
available formats for YouTube videos.

Examples:
  mediasnap https://www.instagram.com/p/ABC123/
  mediasnap --json "https://www.starmakerstudios.com/share?recordingId=987654"
  mediasnap -f urls.txt`,
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Batch mode: read URLs from file
		if inputFile != "" {
			if err := runBatch(inputFile); err != nil {
				exitWithError(err)
			}
			return
		}

		if len(args) == 0 {
			cmd.Help()
			return
		}
		if err := runResolve(args[0]); err != nil {
			exitWithError(err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read URLs from file (one per line)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every resolution attempt")
}

func Execute() error {
	return rootCmd.Execute()
}

// session bundles what a command needs to talk to the resolution service
type session struct {
	cfg *config.Config
	t   *i18n.Translations
	svc *resolve.Service
	log *logrus.Logger
}

func newSession() *session {
	cfg := config.LoadOrDefault()
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := cfg.Log.NewLogger()
	return &session{
		cfg: cfg,
		t:   i18n.T(cfg.Language),
		svc: resolve.New(cfg, log),
		log: log,
	}
}

// interactive reports whether a TUI can be shown
func interactive() bool {
	return !jsonOutput && term.IsTerminal(int(os.Stdout.Fd()))
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runResolve(url string) error {
	s := newSession()

	if !config.Exists() && interactive() {
		fmt.Fprintln(os.Stderr, color.YellowString(s.t.Errors.ConfigNotFound))
	}

	ctx, cancel := signalContext()
	defer cancel()

	var (
		result *resolve.Result
		err    error
	)
	if interactive() && !verbose {
		result, err = runWithSpinner(ctx, url, s.cfg.Language, func(ctx context.Context) (*resolve.Result, error) {
			return s.svc.Resolve(ctx, url)
		})
	} else {
		result, err = s.svc.Resolve(ctx, url)
	}
	if err != nil {
		return s.explain(err)
	}

	if jsonOutput {
		return printJSON(os.Stdout, result)
	}
	printResult(os.Stdout, s.t, result)
	return nil
}

func runBatch(path string) error {
	urls, err := readURLs(path)
	if err != nil {
		return err
	}

	s := newSession()
	ctx, cancel := signalContext()
	defer cancel()

	var (
		succeeded, failed int
		results           []*resolve.Result
		failedURLs        []string
	)
	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		if !jsonOutput {
			fmt.Printf("  [%d/%d] %s\n", i+1, len(urls), url)
		}

		result, err := s.svc.Resolve(ctx, url)
		if err != nil {
			failed++
			failedURLs = append(failedURLs, url)
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "  %s %s\n\n", color.RedString("✗"), userMessage(s.t, err))
			}
			continue
		}

		succeeded++
		if jsonOutput {
			results = append(results, result)
		} else {
			printResult(os.Stdout, s.t, result)
		}
	}

	if jsonOutput {
		return printJSON(os.Stdout, jsonObject{"results": results, "failed": failedURLs})
	}

	fmt.Println(color.New(color.Bold).Sprintf(s.t.Resolve.BatchSummary, succeeded, failed))
	for _, url := range failedURLs {
		fmt.Printf("  - %s\n", url)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d urls failed", failed, len(urls))
	}
	return nil
}

type jsonObject map[string]any

// readURLs reads one URL per line, skipping blanks and # comments
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no urls found in %s", path)
	}
	return urls, nil
}

// explain turns a resolution error into what the user should read
func (s *session) explain(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := userMessage(s.t, err)
	if extractor.HasFallback(err) {
		msg += "\n" + s.t.Resolve.FallbackHint
	}
	s.log.WithError(err).Debug("resolution failed")
	return errors.New(msg)
}

// userMessage returns the localized message for typed errors and the raw
// error text otherwise
func userMessage(t *i18n.Translations, err error) string {
	if code := extractor.CodeOf(err); code != "" {
		return t.Errors.Message(string(code))
	}
	return err.Error()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, t *i18n.Translations, r *resolve.Result) {
	label := color.New(color.FgCyan)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Platform), r.Platform)

	if m := r.Media; m != nil {
		fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Kind), m.Kind)
		if m.Title != "" {
			fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Title), m.Title)
		}
		fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.MediaURL), color.GreenString(m.MediaURL))
		if m.ThumbnailURL != "" {
			fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Thumbnail), m.ThumbnailURL)
		}
		if len(m.CollectionURLs) > 0 {
			fmt.Fprintf(w, "  %s (%d):\n", label.Sprint(t.Resolve.Items), len(m.CollectionURLs))
			for i, u := range m.CollectionURLs {
				fmt.Fprintf(w, "    [%d] %s\n", i+1, u)
			}
		}
	}

	if c := r.Catalog; c != nil {
		printCatalog(w, t, c)
	}
	fmt.Fprintln(w)
}

func printCatalog(w io.Writer, t *i18n.Translations, c *catalog.Catalog) {
	label := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Title), c.Title)
	if c.DurationSeconds > 0 {
		fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Duration), time.Duration(c.DurationSeconds)*time.Second)
	}
	if c.ThumbnailURL != "" {
		fmt.Fprintf(w, "  %s: %s\n", label.Sprint(t.Resolve.Thumbnail), c.ThumbnailURL)
	}

	fmt.Fprintf(w, "\n  %s\n", bold.Sprint(t.Resolve.VideoFormats))
	for _, f := range c.Video {
		audio := ""
		if f.HasAudio {
			audio = " +audio"
		}
		fmt.Fprintf(w, "    %5d  %-8s %-5s %10s%s\n", f.Itag, f.QualityLabel, f.Container, f.Size, audio)
	}

	if len(c.Audio) > 0 {
		fmt.Fprintf(w, "\n  %s\n", bold.Sprint(t.Resolve.AudioFormats))
		for _, f := range c.Audio {
			fmt.Fprintf(w, "    %5d  %-8s %-5s %10s\n", f.Itag, f.QualityLabel, f.Container, f.Size)
		}
	}
	if c.BestAudio != nil {
		fmt.Fprintf(w, "\n  %s: %d (%s)\n", label.Sprint(t.Resolve.BestAudio), c.BestAudio.Itag, c.BestAudio.QualityLabel)
	}
	fmt.Fprintln(w, hintStyle.Render("\n  mediasnap stream <url> --itag <itag>"))
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	os.Exit(1)
}
