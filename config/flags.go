// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// AddFlags registers the command line options understood by BuildViper
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Specifies the topology config file")
	fs.String(LogLevelKey, defaultLogLevel, "Overrides the configured log level")
	fs.String(DeliveryModeKey, defaultDeliveryMode, "Overrides the configured delivery mode (inline or queued)")
}

// DisplayUsageText explains how to point a command at its config file
func DisplayUsageText(w io.Writer) {
	fmt.Fprintf(w, "Usage: onftcli <command> --%s path/to/topology.json\n", ConfigFileKey)
	fmt.Fprintf(w, "The config file may also be set with the %s environment variable.\n", ConfigFileEnvKey)
	fmt.Fprintf(w, "Run onftcli --help for the list of commands.\n")
}
