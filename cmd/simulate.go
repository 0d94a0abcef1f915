package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenlearn/helix/internal/engine"
	"github.com/zenlearn/helix/internal/perf"
	"github.com/zenlearn/helix/internal/readiness"
	"github.com/zenlearn/helix/internal/store"
	"github.com/zenlearn/helix/internal/tubes"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic learner through completion cycles",
	Long: "Simulate drives an in-memory scheduler with a seeded random\n" +
		"learner: each round completes the live tube's head stitch with\n" +
		"random performance, repositions it, and rotates tubes. Useful for\n" +
		"eyeballing skip numbers and rotation behavior.",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		rounds, _ := cmd.Flags().GetInt("rounds")
		seed, _ := cmd.Flags().GetInt64("seed")
		perTube, _ := cmd.Flags().GetInt("stitches")
		if rounds <= 0 || perTube <= 0 {
			return fmt.Errorf("rounds and stitches must be positive")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rng := rand.New(rand.NewSource(seed))
		events := store.NewMemoryEventRepo()

		var eng *engine.Engine
		assemble := func(ctx context.Context, uid string, tube tubes.ID) (*readiness.ReadyStitch, error) {
			head, err := eng.NextStitch(uid, string(tube))
			if err != nil {
				return nil, err
			}
			return &readiness.ReadyStitch{
				StitchID:      head.ID,
				BoundaryLevel: eng.BoundaryLevel(uid),
				Questions: []readiness.Question{{
					ID:         head.ID + "-q1",
					Prompt:     "prompt for " + head.ID,
					Answer:     "answer",
					Distractor: "distractor",
				}},
				AssembledAt: time.Now(),
			}, nil
		}
		eng = engine.New(cfg, engine.Options{
			Events:   events,
			Assemble: assemble,
		})

		ctx := cmd.Context()
		if err := eng.InitializeTubes(ctx, userID, seedTubes(perTube)); err != nil {
			return err
		}
		if err := eng.WarmUp(ctx, userID); err != nil {
			return err
		}

		fmt.Printf("Simulating %d rounds for %s (seed %d, %d stitches/tube)\n\n",
			rounds, userID, seed, perTube)
		for i := 1; i <= rounds; i++ {
			d := randomPerformance(rng)
			res, err := eng.CompleteStitch(ctx, userID, d)
			if err != nil {
				return fmt.Errorf("round %d: %w", i, err)
			}
			r := res.Reposition
			fmt.Printf("round %2d  %s  %-8s  %2d/%d in %4dms  skip=%-2d pos %d->%d  next=%s\n",
				i, res.PreviousTube, r.StitchID,
				d.CorrectCount, d.TotalCount, d.AvgResponseTime.Milliseconds(),
				r.SkipNumber, r.PreviousPosition, r.NewPosition, res.NewActiveTube)
		}

		fmt.Println()
		for _, tube := range tubes.All() {
			units, err := eng.StitchQueue(userID, string(tube))
			if err != nil {
				return err
			}
			order := make([]string, len(units))
			for i, u := range units {
				order[i] = u.ID
			}
			fmt.Printf("%s queue: %s\n", tube, strings.Join(order, " "))
		}
		fmt.Printf("reposition events recorded: %d\n", events.Len())
		return nil
	},
}

func init() {
	simulateCmd.Flags().String("user", "sim-learner", "Simulated user ID")
	simulateCmd.Flags().Int("rounds", 12, "Completion cycles to run")
	simulateCmd.Flags().Int64("seed", 1, "Random seed for reproducible runs")
	simulateCmd.Flags().Int("stitches", 6, "Stitches per tube")
}

// seedTubes builds deterministic stitch IDs like t1-s03.
func seedTubes(perTube int) map[tubes.ID][]string {
	seed := make(map[tubes.ID][]string, 3)
	for i, tube := range tubes.All() {
		ids := make([]string, perTube)
		for j := range ids {
			ids[j] = fmt.Sprintf("t%d-s%02d", i+1, j+1)
		}
		seed[tube] = ids
	}
	return seed
}

// randomPerformance draws a session result: 10..20 correct out of 20,
// average response between 0.8s and 5s.
func randomPerformance(rng *rand.Rand) perf.Data {
	correct := 10 + rng.Intn(11)
	avg := time.Duration(800+rng.Intn(4200)) * time.Millisecond
	return perf.Data{
		CorrectCount:    correct,
		TotalCount:      20,
		AvgResponseTime: avg,
		CompletedAt:     time.Now(),
	}
}
