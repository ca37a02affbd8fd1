package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/livecaption/internal/audio"
	"github.com/leonardotrapani/livecaption/internal/config"
	"github.com/leonardotrapani/livecaption/internal/deps"
	"github.com/leonardotrapani/livecaption/internal/language"
	"github.com/leonardotrapani/livecaption/internal/tui"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "livecaption",
		Short:         "Live captions and translation from your microphone",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		runCmd(),
		languagesCmd(),
		devicesCmd(),
		configureCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livecaption %s\n", version)
		},
	}
}

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List language codes for --source and --target",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tLANGUAGE\tNATIVE")
			for _, l := range language.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Code, l.Name, l.NativeName)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Region variants such as en-US or pt-BR are accepted as well.")
			return w.Flush()
		},
	}
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			devices, err := audio.ListInputDevices()
			if err != nil {
				fmt.Fprintf(w, "PortAudio unavailable: %v\n", err)
			} else {
				fmt.Fprintln(w, "DEVICE\tCHANNELS\tRATE\t")
				for _, d := range devices {
					mark := ""
					if d.Default {
						mark = "(default)"
					}
					fmt.Fprintf(w, "%s\t%d\t%.0f\t%s\n", d.Name, d.Channels, d.SampleRate, mark)
				}
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "PIPEWIRE TOOL\tSTATUS\t\t")
			for _, s := range deps.CaptureTools() {
				state := "not installed"
				if s.Installed {
					state = s.Path
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t\n", s.Name, state, s.Version)
			}
			return w.Flush()
		},
	}
}

func configureCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for livecaption.
This will guide you through setting up:
- Spoken and caption languages
- Speech recognition (Deepgram or Google Cloud Speech)
- Translation (DeepL, OpenAI, Groq or none) and API keys
- Caption display`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/livecaption/config.toml)")
	return cmd
}

func runConfigure(configPath string) error {
	if configPath == "" {
		var err error
		if configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := config.Save(configPath, result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println(tui.StyleSuccess.Render("Configuration saved successfully!"))
	fmt.Printf("Config file location: %s\n", configPath)
	fmt.Println("Start captions with: livecaption run")
	return nil
}
