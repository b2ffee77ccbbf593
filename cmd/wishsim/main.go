// Command wishsim runs a wish plan from a YAML scenario file and prints the
// odds of getting every target.
//
//	wishsim run -scenario plan.yaml [-html plan.html]
//	wishsim analyze -banner character -pity 40 -guaranteed -pulls 120
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/game"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/report"
	"github.com/xtding233/wishsim/internal/sim"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wishsim <run|analyze> [flags]")
	fmt.Fprintln(os.Stderr, "  run      simulate a YAML scenario")
	fmt.Fprintln(os.Stderr, "  analyze  exact odds for one featured 5-star")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:], os.Stdout)
	case "analyze":
		err = analyzeCmd(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "wishsim:", err)
		os.Exit(1)
	}
}

func loadTable(dir, gameName string) (gacha.Table, error) {
	if dir == "" {
		return gacha.DefaultTable(), nil
	}
	return game.NewLoader(dir).Table(gameName)
}

// readScenario decodes a sim.Input from YAML. Unknown keys are errors.
func readScenario(path string) (*sim.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var in sim.Input
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &in, nil
}

func runCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	scenario := fs.String("scenario", "", "YAML scenario file (required)")
	rulesDir := fs.String("rules", "", "rule config directory; empty uses the built-in rules")
	gameName := fs.String("game", "genshin", "game whose rules to load")
	iterations := fs.Int("iterations", 0, "override config.iterations")
	seed := fs.Int64("seed", 0, "override config.seed (0 keeps the file's)")
	workers := fs.Int("workers", 0, "parallel shards; 0 = GOMAXPROCS")
	timeout := fs.Duration("timeout", 0, "wall-clock cap; the partial result is reported when it expires")
	htmlOut := fs.String("html", "", "also write an HTML chart to this path")
	quiet := fs.Bool("q", false, "no progress on stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenario == "" {
		return errors.New("-scenario is required")
	}

	in, err := readScenario(*scenario)
	if err != nil {
		return err
	}
	if *iterations > 0 {
		in.Config.Iterations = *iterations
	}
	if *seed != 0 {
		in.Config.Seed = seed
	}
	table, err := loadTable(*rulesDir, *gameName)
	if err != nil {
		return err
	}

	h := host.New(host.Config{Workers: *workers, Rules: func() gacha.Table { return table }})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(sctx)
	}()

	job, err := h.Submit(ctx, "cli", in, host.Options{Timeout: *timeout})
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			job.Cancel()
			<-job.Done()
		case f, ok := <-job.Progress():
			if ok {
				if !*quiet {
					fmt.Fprintf(os.Stderr, "\r%5.1f%%", f*100)
				}
				continue
			}
		}
		break
	}
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}

	res, err := job.Result()
	if res == nil {
		return err
	}
	printResult(out, res)
	if err != nil {
		fmt.Fprintln(out, "stopped early:", err)
	}
	if *htmlOut != "" {
		var points []gacha.Point
		if len(in.Targets) > 0 {
			if b, perr := gacha.ParseBannerType(string(in.Targets[0].BannerType)); perr == nil {
				points = gacha.Distribution(in.StartState()[b], table[b], gacha.MaxSearchPulls)
			}
		}
		if werr := report.WriteFile(*htmlOut, res, points, report.DefaultChartConfig()); werr != nil {
			return werr
		}
		fmt.Fprintln(out, "chart written to", *htmlOut)
	}
	return nil
}

func printResult(out io.Writer, res *sim.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tBANNER\tDATE\tP(GET)\tAVG PULLS\tMEDIAN")
	for _, t := range res.PerCharacter {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\t%.1f\t%d\n",
			t.CharacterKey, t.BannerType, t.Date, t.Probability*100, t.AveragePullsUsed, t.MedianPullsUsed)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nall must-haves: %.1f%%   nothing: %.1f%%\n", res.AllMustHavesProbability*100, res.NothingProbability*100)
	fmt.Fprintf(out, "trials: %d/%d  seed: %d", res.CompletedIterations, res.Iterations, res.Seed)
	if res.Partial {
		fmt.Fprint(out, "  (partial)")
	}
	fmt.Fprintln(out)

	if len(res.PullTimeline) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tEVENT\tPROJECTED PULLS")
		for _, p := range res.PullTimeline {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Date, p.Event, p.ProjectedPulls)
		}
		tw.Flush()
	}
}

func analyzeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	banner := fs.String("banner", "character", "character, weapon, standard or chronicled")
	rulesDir := fs.String("rules", "", "rule config directory; empty uses the built-in rules")
	gameName := fs.String("game", "genshin", "game whose rules to load")
	pity := fs.Int("pity", 0, "pulls since the last 5-star")
	guaranteed := fs.Bool("guaranteed", false, "next 5-star is the featured one")
	streak := fs.Int("radiant-streak", 0, "Capturing Radiance counter")
	fate := fs.Int("fate", 0, "weapon fate points")
	pulls := fs.Int("pulls", 0, "pulls available")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := gacha.ParseBannerType(*banner)
	if err != nil {
		return err
	}
	table, err := loadTable(*rulesDir, *gameName)
	if err != nil {
		return err
	}
	rules, ok := table[b]
	if !ok {
		return fmt.Errorf("no rules for %s", b)
	}
	st := gacha.State{Pity: *pity, Guaranteed: *guaranteed, RadiantStreak: *streak, FatePoints: *fate}
	sum := gacha.SingleTarget(st, rules, *pulls)

	fmt.Fprintf(out, "%s banner, pity %d, guaranteed %v\n", b, st.Pity, st.Guaranteed)
	fmt.Fprintf(out, "with %d pulls: %.2f%%\n", *pulls, sum.ProbabilityWithPulls*100)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANCE\tPULLS")
	fmt.Fprintf(tw, "50%%\t%d\n80%%\t%d\n90%%\t%d\n99%%\t%d\n", sum.PullsFor50, sum.PullsFor80, sum.PullsFor90, sum.PullsFor99)
	return tw.Flush()
}
