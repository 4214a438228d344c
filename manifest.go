/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Seednode/arenafloor/catalog"
)

func newManifestCmd(v *viper.Viper) *cobra.Command {
	var (
		output      string
		mediaPrefix string
	)

	cmd := &cobra.Command{
		Use:   "build-manifest <folder>",
		Short: "Build a content manifest from a folder of category image folders.",
		Long: `Build a content manifest from a folder of category image folders.

Each subfolder is one category, named "Player - Category". Images inside it
named "NN - Answer.ext" become items with index NN; other images are
numbered in name order and answered by their file name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			root := args[0]

			if output == "" {
				output = filepath.Join(root, "manifest.json")
			}

			m, err := catalog.Build(fs, root, mediaPrefix, time.Now())
			if err != nil {
				return err
			}
			if err := catalog.Write(fs, output, m); err != nil {
				return err
			}

			items := 0
			for _, c := range m.Categories {
				items += len(c.Items)
			}
			log.Info().
				Str("manifest", output).
				Int("categories", len(m.Categories)).
				Int("items", items).
				Msg("manifest written")
			return nil
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)
	fs.StringVarP(&output, "output", "o", "", "where to write the manifest (default <folder>/manifest.json) (env: ARENAFLOOR_OUTPUT)")
	fs.StringVar(&mediaPrefix, "media-prefix", "media", "url path the image folder is served under (env: ARENAFLOOR_MEDIA_PREFIX)")
	bindFlags(v, fs)

	return cmd
}
