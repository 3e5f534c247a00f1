// Command sftpd-server is the thin CLI wrapper around the sftp engine:
// it reads framed SFTPv3 requests from stdin and writes responses to
// stdout, jailed inside a directory given on the command line. It does
// not speak SSH; that is the transport's job, external to this binary
// (spec.md §1).
//
// Grounded on samterainsights-sftp/server_standalone/main.go for the
// overall shape (flags, then Serve on stdin/stdout) and
// original_source/pysftpserver.py's optparse CLI for the exact flag
// set: a positional jail directory, --logfile, and --umask.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sftpd "github.com/sftpgo-lite/sftpd"
	"github.com/sftpgo-lite/sftpd/chroot"
)

var (
	logfile  string
	umaskStr string
)

var rootCmd = &cobra.Command{
	Use:   "sftpd-server JAIL_DIR",
	Short: "Serve SFTPv3 requests over stdin/stdout, jailed inside JAIL_DIR",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&logfile, "logfile", "", "write logs to `PATH` (default: discarded)")
	rootCmd.Flags().StringVar(&umaskStr, "umask", "022", "umask (octal) applied to files and directories this server creates")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(io.Discard)
	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open logfile: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	umaskBits, err := strconv.ParseUint(umaskStr, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid --umask %q: %w", umaskStr, err)
	}

	backend, err := chroot.New(args[0], os.FileMode(umaskBits))
	if err != nil {
		return fmt.Errorf("jail: %w", err)
	}

	log.WithField("jail", args[0]).Info("sftpd-server starting")
	session := sftpd.NewSession(os.Stdin, os.Stdout, backend, sftpd.WithLogger(log))
	if err := session.Serve(); err != nil {
		log.WithError(err).Error("session ended")
		return err
	}
	log.Info("session closed")
	return nil
}
