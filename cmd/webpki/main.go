// Command webpki validates X.509 certification paths against a set of
// caller-supplied trust anchors and intermediates.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:           "webpki",
		Short:         "Web PKI certification path validator",
		SilenceErrors: true,
	}
	root.AddCommand(newVerifyCommand())

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(*usageErr); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
