package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wordhat/internal/srs"
)

var triageUnit int

// placeCmd runs an interactive placement session
var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Run an adaptive placement session",
	Long: `Runs the adaptive placement flow: the learner answers "do you know
this word?" while a bounded binary search with regression probes homes
in on their level. Interrupted sessions resume where they left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := openService()
		if err != nil {
			return err
		}
		defer done()
		ctx := cmd.Context()

		res, err := svc.StartPlacement(ctx, learner)
		if err != nil {
			return err
		}

		in := bufio.NewScanner(os.Stdin)
		for !res.Complete {
			q := res.Question
			fmt.Printf("[%d] Do you know %q? (y/n) ", q.Position, q.Word.SourceForm)
			known, ok := readYesNo(in)
			if !ok {
				fmt.Println("\nsession saved, run place again to resume")
				return nil
			}
			res, err = svc.AnswerPlacement(ctx, learner, q.Word.ID, known)
			if err != nil {
				return err
			}
		}
		fmt.Printf("placement complete after %d questions: level %d\n",
			res.QuestionCount, *res.FinalLevel)
		return nil
	},
}

// triageCmd runs first-contact known/unknown sorting for one unit
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Sort a unit's new words into known and to-learn",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := openService()
		if err != nil {
			return err
		}
		defer done()
		ctx := cmd.Context()

		words, err := svc.UnitWords(ctx, learner, triageUnit)
		if err != nil {
			return err
		}
		if len(words) == 0 {
			fmt.Printf("unit %d has nothing left to sort\n", triageUnit)
			return nil
		}

		in := bufio.NewScanner(os.Stdin)
		known, toLearn := 0, 0
		for _, w := range words {
			fmt.Printf("Do you know %q? (y/n) ", w.Word.SourceForm)
			yes, ok := readYesNo(in)
			if !ok {
				break
			}
			if _, err := svc.Triage(ctx, learner, w.Word.ID, yes); err != nil {
				return err
			}
			if yes {
				known++
			} else {
				toLearn++
			}
		}
		fmt.Printf("sorted: %d known, %d queued for learning\n", known, toLearn)
		return nil
	},
}

// reviewCmd runs an interactive review session
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review due words",
	Long: `Pulls the due queue (struggling words first, then due reviews, then
new words) and grades each recall on the 0-5 scale. Plain y/n answers
work too and map onto the scale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := openService()
		if err != nil {
			return err
		}
		defer done()
		ctx := cmd.Context()

		queue, err := svc.ReviewSession(ctx, learner, 0)
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			fmt.Println("nothing due, come back later")
			return nil
		}

		in := bufio.NewScanner(os.Stdin)
		for i, item := range queue {
			fmt.Printf("[%d/%d] %s\n", i+1, len(queue), item.Word.SourceForm)
			fmt.Print("  recall it, then press enter to reveal... ")
			if !in.Scan() {
				return nil
			}
			fmt.Printf("  -> %s\n", item.Word.TargetForm)
			fmt.Print("  grade 0-5 (or y/n): ")

			quality, ok := readQuality(in)
			if !ok {
				fmt.Println("\nsession ended early")
				return nil
			}
			out, err := svc.SubmitReview(ctx, learner, item.Word.ID, quality)
			if err != nil {
				return err
			}
			fmt.Printf("  %s, next review in %d day(s)\n",
				strings.ToLower(string(out.Entry.Status)), out.Entry.IntervalDays)
			if out.Activity.GoalReached {
				fmt.Printf("  daily goal reached! streak: %d day(s)\n", out.Activity.Streak)
			}
		}
		return nil
	},
}

// statsCmd prints the learner's progress overview
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show progress per unit and the review queue summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, done, err := openService()
		if err != nil {
			return err
		}
		defer done()
		ctx := cmd.Context()

		ls, err := svc.StatsLearner(ctx, learner)
		if err != nil {
			return err
		}
		fmt.Printf("streak: %d day(s)   today: %d/%d reviews\n", ls.Streak, ls.DailyCount, ls.DailyGoal)
		fmt.Printf("due now: %d   unseen: %d", ls.DueCount, ls.NewCount)
		if ls.NextReviewAt != nil {
			fmt.Printf("   next review: %s", ls.NextReviewAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Println()

		byUnit, err := svc.StatsByUnit(ctx, learner)
		if err != nil {
			return err
		}
		for _, u := range byUnit.Units {
			fmt.Printf("unit %2d: %3d/%3d (%5.1f%%)\n", u.Unit, u.Learned, u.Total, u.Percent)
		}
		fmt.Printf("overall: %d/%d (%.1f%%)\n",
			byUnit.TotalLearned, byUnit.TotalWords, byUnit.OverallPercent)
		return nil
	},
}

func init() {
	triageCmd.Flags().IntVarP(&triageUnit, "unit", "u", 0, "unit number")
	triageCmd.MarkFlagRequired("unit")
}

func readYesNo(in *bufio.Scanner) (known, ok bool) {
	for in.Scan() {
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
			return true, true
		case "n", "no":
			return false, true
		case "q", "quit":
			return false, false
		}
		fmt.Print("please answer y or n: ")
	}
	return false, false
}

func readQuality(in *bufio.Scanner) (int, bool) {
	for in.Scan() {
		answer := strings.ToLower(strings.TrimSpace(in.Text()))
		switch answer {
		case "y", "yes":
			return srs.QualityKnown, true
		case "n", "no":
			return srs.QualityUnknown, true
		case "q", "quit":
			return 0, false
		}
		if q, err := strconv.Atoi(answer); err == nil && q >= 0 && q <= 5 {
			return q, true
		}
		fmt.Print("  grade 0-5 (or y/n): ")
	}
	return 0, false
}
