package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "snapvault",
	Short: "Snapchat memories export downloader",
	Long:  `Downloads every memory listed in a Snapchat export index, with resumable state tracking, overlay unpacking, and optional S3 mirroring.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("output-dir", "downloads", "Directory for downloaded media and state")
	rootCmd.PersistentFlags().Float64("delay-seconds", 1.0, "Per-worker pause between downloads")
	rootCmd.PersistentFlags().Int("max-retries", 3, "Download attempts per asset")
	rootCmd.PersistentFlags().Int("workers", 1, "Concurrent download workers")
	rootCmd.PersistentFlags().Int("http-timeout-seconds", 60, "Per-request HTTP timeout")
	rootCmd.PersistentFlags().String("state-backend", "json", "State store backend (json or sqlite)")
	rootCmd.PersistentFlags().Int("flush-every", 10, "Completed downloads between state flushes")
	rootCmd.PersistentFlags().String("fsm-db-path", "", "FSM BoltDB directory (defaults under output-dir)")
	rootCmd.PersistentFlags().String("overlay-marker", "-main.", "Archive entry marker for the base media file")
	rootCmd.PersistentFlags().Int64("max-media-size", 500*1024*1024, "Max extracted media size in bytes")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for the mirror command")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.PersistentFlags().String("s3-prefix", "memories", "S3 key prefix for mirrored media")

	viper.BindPFlag("output-dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("delay-seconds", rootCmd.PersistentFlags().Lookup("delay-seconds"))
	viper.BindPFlag("max-retries", rootCmd.PersistentFlags().Lookup("max-retries"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("http-timeout-seconds", rootCmd.PersistentFlags().Lookup("http-timeout-seconds"))
	viper.BindPFlag("state-backend", rootCmd.PersistentFlags().Lookup("state-backend"))
	viper.BindPFlag("flush-every", rootCmd.PersistentFlags().Lookup("flush-every"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("overlay-marker", rootCmd.PersistentFlags().Lookup("overlay-marker"))
	viper.BindPFlag("max-media-size", rootCmd.PersistentFlags().Lookup("max-media-size"))
	viper.BindPFlag("s3-bucket", rootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("s3-region", rootCmd.PersistentFlags().Lookup("s3-region"))
	viper.BindPFlag("s3-prefix", rootCmd.PersistentFlags().Lookup("s3-prefix"))
}
