package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alec-rabold/rangezip/pkg/aws"
	"github.com/alec-rabold/rangezip/pkg/transport"
	"github.com/alec-rabold/rangezip/pkg/zipfile"
)

var (
	// VERSION is set during build
	VERSION string
)

var cfgFile string
var bucket, key string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rangezip",
	Short: "CLI tool to extract files from remote zip archives without downloading the entire archive",
	Long: `The rangezip CLI lists and extracts files from zip archives served over HTTP(S)
or stored in S3, using range requests to fetch only the central directory and the
data of the files you ask for.

	example:

		rangezip list https://example.com/archive.zip
		rangezip extract https://example.com/archive.zip -f plan.txt
		rangezip extract s3://myBucket/myKey -f plan1.txt -f path/to/plan2.txt -d out/
		rangezip extract -b myBucket -k myKey -f directory/`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(version string) {
	VERSION = version
	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rangezip.yaml)")
	flags.BoolP("verbose", "v", false, "log every request and transfer state change")
	flags.String("user-agent", "", "User-Agent header sent with every request (default rangezip/<version>)")
	flags.Int("max-redirects", transport.DefaultMaxRedirects, "maximum number of redirects followed when resolving the archive location")
	flags.Duration("timeout", 30*time.Second, "time to wait for response headers of each request, 0 to wait forever")
	flags.StringVarP(&bucket, "bucket", "b", "", "name of the S3 bucket, instead of an archive URL")
	flags.StringVarP(&key, "key", "k", "", "name of the S3 key (object), instead of an archive URL")
	flags.String("s3-region", "", "AWS region of the bucket")
	flags.String("s3-profile", "", "AWS shared config profile")
	flags.String("s3-endpoint", "", "endpoint of an S3-compatible store")

	for configKey, flagName := range map[string]string{
		"verbose":       "verbose",
		"user-agent":    "user-agent",
		"max-redirects": "max-redirects",
		"timeout":       "timeout",
		"s3.region":     "s3-region",
		"s3.profile":    "s3-profile",
		"s3.endpoint":   "s3-endpoint",
	} {
		_ = viper.BindPFlag(configKey, flags.Lookup(flagName))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			log.Fatal(err)
		}

		// Search config in home directory with name ".rangezip" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".rangezip")
	}

	viper.SetEnvPrefix("rangezip")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	err := viper.ReadInConfig()

	log.SetLevel(log.InfoLevel)
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	if err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		log.Fatalf("error reading config file (name: %s), err: %v", cfgFile, err)
	}
}

// archiveURL returns the archive named by the positional argument or by --bucket and --key.
func archiveURL(args []string) (string, error) {
	switch {
	case len(args) == 1 && bucket == "" && key == "":
		return args[0], nil
	case len(args) == 0 && bucket != "" && key != "":
		return fmt.Sprintf("%s://%s/%s", aws.Scheme, bucket, key), nil
	}
	return "", fmt.Errorf("expected either an archive URL or both --bucket and --key")
}

func userAgent() string {
	if ua := viper.GetString("user-agent"); ua != "" {
		return ua
	}
	if VERSION == "" {
		return "rangezip"
	}
	return "rangezip/" + VERSION
}

// openArchive probes rawURL with the transport its scheme calls for.
func openArchive(ctx context.Context, rawURL string) (*zipfile.Archive, error) {
	loc := transport.Location{URL: rawURL, UserAgent: userAgent()}

	t, err := zipfile.TransportFor(loc, func(opts *zipfile.TransportOptions) {
		httpTransport := http.DefaultTransport.(*http.Transport).Clone()
		httpTransport.ResponseHeaderTimeout = viper.GetDuration("timeout")
		opts.HTTPClient = &http.Client{Transport: httpTransport}
		opts.MaxRedirects = viper.GetInt("max-redirects")
		opts.S3 = aws.Options{
			Region:   viper.GetString("s3.region"),
			Profile:  viper.GetString("s3.profile"),
			Endpoint: viper.GetString("s3.endpoint"),
		}
	})
	if err != nil {
		return nil, err
	}

	a, err := zipfile.Open(ctx, t, loc)
	if err != nil {
		return nil, fmt.Errorf("error opening archive (url: %s), err: %w", rawURL, err)
	}
	return a, nil
}
