package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alec-rabold/rangezip/pkg/reader"
	"github.com/alec-rabold/rangezip/pkg/zipfile"
)

var files, outFiles []string
var outDir string

var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Extract one or more files from a remote zip archive",
	Long: `Downloads range(s) of bytes from a remote zip archive
	containing the compressed file(s), then decompresses the data.

	Every file is extracted with its own requests. Names ending in / select
	every file under that directory. -o - writes to standard output.

	ex:
	rangezip extract https://example.com/archive.zip -f plan.txt
	rangezip extract s3://myBucket/myKey -f plan.txt -o my/directory/plan.txt
	rangezip extract -b myBucket -k myKey -f plan1.txt -f path/to/plan2.txt -f directory/ -d out
	rangezip extract -b myBucket -k myKey -f plan1.txt -o plan1.txt -f plan2.txt -o plan2.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(files) == 0 {
			return fmt.Errorf("error: must specify at least one file with -f")
		}
		if len(outFiles) > 0 && len(outFiles) != len(files) {
			return fmt.Errorf("error: must specify one output file for every search term")
		}
		rawURL, err := archiveURL(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openArchive(ctx, rawURL)
		if err != nil {
			return err
		}
		entries, err := a.Entries(ctx)
		if err != nil {
			return err
		}
		jobs, err := selectEntries(entries, files, outFiles, outDir)
		if err != nil {
			return err
		}

		opts, err := downloadOptions()
		if err != nil {
			return err
		}

		parallel := max(1, viper.GetInt("parallel"))
		showProgress := parallel == 1 && !viper.GetBool("no-progress")

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for _, j := range jobs {
			g.Go(func() error {
				n, err := extractEntry(ctx, a, j, cmd.OutOrStdout(), opts, showProgress)
				if err != nil {
					log.Errorf("error extracting file (name: %s), err: %v", j.entry.Name, err)
					return err
				}
				log.WithFields(log.Fields{"name": j.entry.Name, "dest": j.dest, "size": humanize.IBytes(uint64(n))}).Info("extracted")
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	flags := extractCmd.Flags()
	flags.StringArrayVarP(&files, "file", "f", nil, "(required) name of a file to extract, or of a directory ending in / (repeatable)")
	flags.StringArrayVarP(&outFiles, "out", "o", nil, "file to write output to, one per -f; - for standard output")
	flags.StringVarP(&outDir, "dir", "d", ".", "directory to extract into when -o is not given")
	flags.IntP("parallel", "P", 1, "number of files extracted at the same time")
	flags.String("buffer-size", "32KiB", "size of the chunks copied to the output")
	flags.String("limit-rate", "", "maximum transfer rate in bytes per second, e.g. 512KiB (default unlimited)")
	flags.Bool("single-request", false, "fetch local header and data with one request per file")
	flags.Bool("no-progress", false, "do not show progress bars")

	for _, name := range []string{"parallel", "buffer-size", "limit-rate", "single-request", "no-progress"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// job is one entry and where to write it.
type job struct {
	entry reader.Entry
	dest  string
}

// selectEntries resolves search terms against the archive. A term ending in / selects the directory
// and everything below it; any other term must match an entry name exactly.
func selectEntries(entries []reader.Entry, terms, outs []string, dir string) ([]job, error) {
	var jobs []job
	for i, term := range terms {
		var matched []reader.Entry
		for _, e := range entries {
			if e.Name == term || (strings.HasSuffix(term, "/") && strings.HasPrefix(e.Name, term)) {
				matched = append(matched, e)
			}
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("%w: %s", zipfile.ErrNotFound, term)
		}
		if len(outs) > 0 && len(matched) > 1 && outs[i] != "-" {
			return nil, fmt.Errorf("error: %s matches %d files, use -d instead of -o", term, len(matched))
		}

		for _, e := range matched {
			if len(outs) > 0 {
				jobs = append(jobs, job{entry: e, dest: outs[i]})
				continue
			}
			dest, err := destination(dir, e.Name)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job{entry: e, dest: dest})
		}
	}
	return jobs, nil
}

// destination joins an entry name to dir, refusing names that would escape it.
func destination(dir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("error: refusing to extract %q outside of %s", name, dir)
	}
	return filepath.Join(dir, rel), nil
}

func downloadOptions() (*zipfile.DownloadOptions, error) {
	opts := &zipfile.DownloadOptions{
		BufferSize:    zipfile.DefaultBufferSize,
		SingleRequest: viper.GetBool("single-request"),
	}

	if s := viper.GetString("buffer-size"); s != "" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid buffer-size %q: %w", s, err)
		}
		opts.BufferSize = int(max(1, min(n, 16<<20)))
	}

	if s := viper.GetString("limit-rate"); s != "" {
		n, err := humanize.ParseBytes(s)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid limit-rate %q", s)
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(n), int(min(n, uint64(opts.BufferSize))))
	}
	return opts, nil
}

// extractEntry downloads j.entry into a temporary file next to j.dest and renames it once the
// download has completed. Nothing is left behind on failure or cancellation.
func extractEntry(ctx context.Context, a *zipfile.Archive, j job, stdout io.Writer, opts *zipfile.DownloadOptions, showProgress bool) (int64, error) {
	if j.entry.IsDir() {
		if j.dest == "-" {
			return 0, nil
		}
		return 0, os.MkdirAll(j.dest, 0o755)
	}

	o := *opts
	if showProgress {
		bar := newProgressBar(j.entry)
		defer bar.Close()
		o.Progress = func(bytesSoFar, _, _ int64) { _ = bar.Set64(bytesSoFar) }
	}
	optFn := func(d *zipfile.DownloadOptions) { *d = o }

	if j.dest == "-" {
		return a.Download(ctx, j.entry, stdout, optFn)
	}

	if err := os.MkdirAll(filepath.Dir(j.dest), 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(filepath.Dir(j.dest), "."+filepath.Base(j.dest)+".*.tmp")
	if err != nil {
		return 0, err
	}

	n, err := a.Download(ctx, j.entry, f, optFn)
	if err == nil {
		err = f.Chmod(0o644)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(f.Name(), j.dest)
	}
	if err != nil {
		if rerr := os.Remove(f.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Warnf("error removing temporary file (name: %s), err: %v", f.Name(), rerr)
		}
		return n, err
	}
	return n, nil
}
