package cmd

import (
	"fmt"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alec-rabold/rangezip/pkg/reader"
)

var listBytes bool

var listCmd = &cobra.Command{
	Use:     "list [url]",
	Aliases: []string{"ls"},
	Short:   "List the files in a remote zip archive",
	Long: `Downloads the central directory of a remote zip archive and prints one line
per file, in the order the files are stored.

	ex:
	rangezip list https://example.com/archive.zip
	rangezip list -b myBucket -k myKey`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL, err := archiveURL(args)
		if err != nil {
			return err
		}
		a, err := openArchive(cmd.Context(), rawURL)
		if err != nil {
			return err
		}
		entries, err := a.Entries(cmd.Context())
		if err != nil {
			return err
		}

		size := humanize.IBytes
		if listBytes {
			size = func(n uint64) string { return fmt.Sprint(n) }
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "SIZE\tCOMPRESSED\tMETHOD\tMODIFIED\t NAME")
		var total uint64
		for _, e := range entries {
			total += e.UncompressedSize
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t %s\n",
				size(e.UncompressedSize), size(e.CompressedSize), methodName(e.Method),
				e.Modified.Format("2006-01-02 15:04"), e.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d files, %s\n", len(entries), size(total))
		return err
	},
}

func methodName(method uint16) string {
	switch method {
	case reader.Store:
		return "store"
	case reader.Deflate:
		return "deflate"
	}
	return fmt.Sprintf("method %d", method)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listBytes, "bytes", false, "print sizes in bytes")
}
