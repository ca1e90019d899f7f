package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guiyumin/mediasnap/internal/core/catalog"
	"github.com/guiyumin/mediasnap/internal/core/relay"
)

var (
	streamItag   int
	streamOutput string
	streamTitle  string
)

var formatsCmd = &cobra.Command{
	Use:   "formats <url>",
	Short: "List the video and audio formats of a YouTube video",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFormats(args[0]); err != nil {
			exitWithError(err)
		}
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream <url>",
	Short: "Save one format of a YouTube video",
	Long: `Relay the selected format of a YouTube video to a file.

Pick an itag from 'mediasnap formats <url>'. Without -o the file is written
to the configured output directory, named after the video title. Use -o -
to write to stdout.

Examples:
  mediasnap stream "https://youtu.be/dQw4w9WgXcQ" --itag 22
  mediasnap stream "https://youtu.be/dQw4w9WgXcQ" --itag 140 -o song.m4a
  mediasnap stream "https://youtu.be/dQw4w9WgXcQ" --itag 18 -o - | mpv -`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStream(args[0]); err != nil {
			exitWithError(err)
		}
	},
}

func init() {
	streamCmd.Flags().IntVar(&streamItag, "itag", 0, "format selector from 'mediasnap formats'")
	streamCmd.Flags().StringVarP(&streamOutput, "output", "o", "", "output file, or - for stdout")
	streamCmd.Flags().StringVar(&streamTitle, "title", "", "title used for the file name")
	streamCmd.MarkFlagRequired("itag")

	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(streamCmd)
}

func runFormats(url string) error {
	s := newSession()
	ctx, cancel := signalContext()
	defer cancel()

	var (
		c   *catalog.Catalog
		err error
	)
	if interactive() && !verbose {
		c, err = runWithSpinner(ctx, url, s.cfg.Language, func(ctx context.Context) (*catalog.Catalog, error) {
			return s.svc.Formats(ctx, url)
		})
	} else {
		c, err = s.svc.Formats(ctx, url)
	}
	if err != nil {
		return s.explain(err)
	}

	if jsonOutput {
		return printJSON(os.Stdout, c)
	}
	fmt.Println()
	printCatalog(os.Stdout, s.t, c)
	fmt.Println()
	return nil
}

func runStream(url string) error {
	s := newSession()
	ctx, cancel := signalContext()
	defer cancel()

	title := streamTitle
	if title == "" && streamOutput == "" {
		// Name the file after the video
		if c, err := s.svc.Formats(ctx, url); err == nil {
			title = c.Title
		}
	}

	stream, err := s.svc.Relay().Open(ctx, relay.Request{
		URL:   url,
		Itag:  streamItag,
		Title: title,
	})
	if err != nil {
		return s.explain(err)
	}
	defer stream.Close()

	if streamOutput == "-" {
		if _, err := stream.WriteTo(os.Stdout); err != nil {
			return s.explain(err)
		}
		return nil
	}

	output, err := streamPath(streamOutput, s.cfg.OutputDir, stream.Filename)
	if err != nil {
		return err
	}

	if err := saveStream(ctx, stream, output, s.cfg.Language, interactive()); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return s.explain(err)
	}
	if !interactive() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", s.t.Resolve.SavedTo, output)
	}
	return nil
}

// streamPath decides where a stream is saved and makes sure its directory exists
func streamPath(output, outputDir, filename string) (string, error) {
	path := output
	if path == "" {
		path = filename
		if outputDir != "" {
			path = filepath.Join(outputDir, filename)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return path, nil
}
