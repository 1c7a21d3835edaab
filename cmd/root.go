// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/googlecloudplatform/strqueue/cfg"
	"github.com/googlecloudplatform/strqueue/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd returns the strqueue command. run is invoked with the merged and
// validated config: values from --config-file are overridden by flags that
// were set explicitly.
func NewRootCmd(run func(ctx context.Context, c *cfg.Config) error) (*cobra.Command, error) {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "strqueue [flags]",
		Short: "Exercise a string queue with a command script",
		Long: `strqueue reads queue commands (new, ih, it, rh, reverse, size, ...) from
a script or from stdin, runs them against a singly-linked string queue and
verifies every result, including that no memory block is leaked. Run "help"
inside a session for the list of commands.`,
		Version:       common.GetVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.ValidateConfig(c); err != nil {
				return fmt.Errorf("error while validating the config: %w", err)
			}
			return run(cmd.Context(), c)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file. Flags that are set explicitly take precedence.")
	if err := cfg.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("error while binding flags: %w", err)
	}
	return rootCmd, nil
}

func loadConfig(v *viper.Viper, cfgFile string) (*cfg.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	var c cfg.Config
	err := v.Unmarshal(&c, viper.DecodeHook(cfg.DecodeHook()), func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("error while unmarshaling the config: %w", err)
	}
	return &c, nil
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	rootCmd, err := NewRootCmd(runSession)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
