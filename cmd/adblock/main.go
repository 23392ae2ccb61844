// Command adblock parses filter lists, checks URLs against them and manages
// rule blobs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/webmacs/adblock"
	"github.com/webmacs/adblock/internal/config"
	"github.com/webmacs/adblock/rules"
	"golang.org/x/sync/errgroup"
)

// Options are the command-line arguments.
type Options struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the configuration file (optional)."`

	// FilterLists are the paths to the filter lists.
	FilterLists []string `short:"f" long:"filter" description:"Path to the filter list. Can be specified multiple times."`

	// Input is the path to the blob loaded before parsing the filter lists.
	Input string `short:"i" long:"input" description:"Path to the rule blob to load."`

	// Output is the path to the blob to save after parsing the filter lists.
	Output string `short:"o" long:"output" description:"Path to save the rule blob to."`

	// URLs are the URLs to check.
	URLs []string `short:"u" long:"url" description:"URL to check. Can be specified multiple times."`

	// Domain is the domain of the document making the requests.
	Domain string `short:"d" long:"domain" description:"Domain of the document making the requests." default:"example.com"`

	// Types are the resource types and party flags of the requests.
	Types string `short:"t" long:"types" description:"Comma-separated request types, e.g. script,third-party."`

	// Compress enables compression of the saved blob.
	Compress bool `short:"z" long:"compress" description:"Compress the saved blob." optional:"yes" optional-value:"true"`

	// Verbose enables debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

func main() {
	var opts Options
	parser := goFlags.NewParser(&opts, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	lvl := slog.LevelInfo
	if opts.Verbose {
		lvl = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	err = run(context.Background(), &opts, logger, os.Stdout)
	if err != nil {
		logger.Error("running", slogutil.KeyError, err)

		os.Exit(1)
	}
}

// run executes the command.
func run(ctx context.Context, opts *Options, logger *slog.Logger, out io.Writer) (err error) {
	c, err := newConfig(opts)
	if err != nil {
		return err
	}

	e := adblock.NewEngine(c.EngineConfig(logger))

	if opts.Input != "" {
		err = e.Load(opts.Input)
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
	} else if c.Blob != "" {
		err = e.Load(c.Blob)
		if errors.Is(err, os.ErrNotExist) {
			logger.InfoContext(ctx, "no blob yet", "path", c.Blob)
		} else if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
	}

	texts, err := readFilterLists(ctx, c.FilterFiles, c.Workers)
	if err != nil {
		return err
	}

	for _, text := range texts {
		e.Parse(text)
	}

	err = checkURLs(e, opts, out)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" && len(texts) > 0 {
		output = c.Blob
	}

	if output == "" {
		return nil
	}

	return e.Save(output)
}

// newConfig returns the configuration from the file, if any, with the
// command-line options applied.
func newConfig(opts *Options) (c *config.Config, err error) {
	c = &config.Config{}
	if opts.ConfigPath != "" {
		c, err = config.Read(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	c.FilterFiles = append(c.FilterFiles, opts.FilterLists...)
	c.Compress = c.Compress || opts.Compress

	return c, nil
}

// readFilterLists reads the filter lists concurrently.  The texts are returned
// in the order of paths.
func readFilterLists(ctx context.Context, paths []string, workers int) (texts []string, err error) {
	texts = make([]string, len(paths))

	g, _ := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, p := range paths {
		g.Go(func() (err error) {
			// #nosec G304 -- The path is provided by the user.
			b, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading filter list: %w", err)
			}

			texts[i] = string(b)

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return texts, nil
}

// checkURLs matches the URLs from opts and writes the results to out.
func checkURLs(e *adblock.Engine, opts *Options, out io.Writer) (err error) {
	reqOpts, unknown := rules.ParseFilterOptions(opts.Types)
	if len(unknown) > 0 {
		return fmt.Errorf("unknown request types: %s", strings.Join(unknown, ", "))
	}

	for _, u := range opts.URLs {
		rule, blocked := e.MatchRequest(rules.NewRequest(u, opts.Domain, reqOpts))

		verdict := "ALLOW"
		if blocked {
			verdict = "BLOCK"
		}

		ruleText := "-"
		if rule != nil {
			ruleText = rule.Text()
		}

		_, err = fmt.Fprintf(out, "%s\t%s\t%s\n", verdict, u, ruleText)
		if err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	return nil
}
