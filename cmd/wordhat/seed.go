package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wordhat/internal/difficulty"
	"wordhat/internal/store"
	"wordhat/internal/types"
)

var seedFile string

// wordFile is the YAML layout of a seed file.
type wordFile struct {
	Words []struct {
		ID     int64  `yaml:"id"`
		Unit   int    `yaml:"unit"`
		Rank   int    `yaml:"rank"`
		Source string `yaml:"source"`
		Target string `yaml:"target"`
		Audio  string `yaml:"audio"`
	} `yaml:"words"`
}

// seedCmd loads a word list into the catalog
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a YAML word list into the catalog",
	Long: `Reads a word list and upserts it into the catalog. Re-seeding with
updated entries is safe; word ids are the stable key.

Example word file:
  words:
    - id: 1
      unit: 1
      rank: 5
      source: hello
      target: hola
      audio: audio/hello.mp3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read word file: %w", err)
		}
		var wf wordFile
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("parse word file: %w", err)
		}
		if len(wf.Words) == 0 {
			return fmt.Errorf("word file %s holds no words", seedFile)
		}

		words := make([]types.Word, 0, len(wf.Words))
		for _, w := range wf.Words {
			words = append(words, types.Word{
				ID:             w.ID,
				Unit:           w.Unit,
				DifficultyRank: w.Rank,
				SourceForm:     w.Source,
				TargetForm:     w.Target,
				AudioRef:       w.Audio,
			})
		}

		st, err := store.Open(cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UpsertWords(cmd.Context(), words); err != nil {
			return err
		}
		total, err := st.CountWords(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d words, catalog now holds %d\n", len(words), total)
		return nil
	},
}

// recalcCmd refreshes the crowd-sourced difficulty levels
var recalcCmd = &cobra.Command{
	Use:   "recalc-difficulty",
	Short: "Recalculate crowd-sourced word difficulty from learner outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		sum, err := difficulty.NewService(st, logger).Recalculate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("updated %d of %d words (%d without data), mean success rate %.2f\n",
			sum.WordsUpdated, sum.TotalWords, sum.WordsWithoutData, sum.MeanSuccessRate)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "word list file (yaml)")
	seedCmd.MarkFlagRequired("file")
}
