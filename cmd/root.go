package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bayue48/pia-scrap/config"
)

var RootCmd = &cobra.Command{
	Use:   "pia-scrap",
	Short: "Download Novelpia novels as EPUB",
	Long:  "Download Novelpia novels as EPUB, through the website or the JSON API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

var (
	configPath string
	cfg        = config.Default()
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "pia-scrap.yaml", "config file path")
}
