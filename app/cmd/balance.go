package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/syohex/go-texttable"

	"github.com/HomerJax/SKV-Strich-App/app/balance"
	"github.com/HomerJax/SKV-Strich-App/app/roster"
	"github.com/HomerJax/SKV-Strich-App/app/store"
)

// Balance is a command to split the players present at a session into
// two teams from the command line.
type Balance struct {
	CommonOpts
	StoreLocation string `long:"loc"     env:"LOCATION" description:"Store location" default:"skv.db"`
	Session       int64  `long:"session" required:"true" description:"Session ID"`
	Rule          string `long:"rule"    default:"even" choice:"free" choice:"even" choice:"strict" description:"Team size rule"`
	Trials        int    `long:"trials"  default:"1200" description:"Number of candidates to try"`
	Seed          uint64 `long:"seed"    description:"Seed for a reproducible split, random if zero"`
	Save          bool   `long:"save"    description:"Store the split as the teams of the session"`
}

// Execute runs the command.
func (b Balance) Execute([]string) error {
	s, err := store.New(b.StoreLocation)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer s.Close()

	return b.run(context.Background(), store.NewService(s), os.Stdout)
}

func (b Balance) run(ctx context.Context, svc *store.Service, out io.Writer) error {
	rule, err := balance.ParseSizeRule(b.Rule)
	if err != nil {
		return err
	}

	opts := balance.Options{Rule: rule, Trials: b.Trials}
	if b.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(b.Seed, b.Seed))
	}

	var teamA, teamB []roster.Player
	if b.Save {
		lineup, err := svc.GenerateTeams(ctx, b.Session, opts)
		if err != nil {
			return fmt.Errorf("generate teams: %w", err)
		}
		teamA, teamB = lineup.TeamA, lineup.TeamB
	} else {
		// dry run, the stored teams stay as they are
		lineup, err := svc.Lineup(ctx, b.Session)
		if err != nil {
			return fmt.Errorf("get lineup: %w", err)
		}

		var candidates []roster.Player
		for _, team := range [][]roster.Player{lineup.TeamA, lineup.TeamB, lineup.Pool} {
			for _, pl := range team {
				if pl.Active {
					candidates = append(candidates, pl)
				}
			}
		}

		part, err := balance.Balance(candidates, opts)
		if err != nil {
			return fmt.Errorf("balance teams: %w", err)
		}
		teamA, teamB = roster.SortForDisplay(part.A), roster.SortForDisplay(part.B)
	}

	_, err = fmt.Fprintln(out, drawTeams(teamA, teamB))
	return err
}

// drawTeams renders both teams with strengths and the score of the split.
func drawTeams(teamA, teamB []roster.Player) string {
	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader("Team", "Name", "Position", "Age", "Strength")
	for _, team := range []struct {
		name    string
		players []roster.Player
	}{{"A", teamA}, {"B", teamB}} {
		for _, pl := range team.players {
			_ = tbl.AddRow(team.name, pl.Name, pl.Position.String(), pl.Age.String(), strconv.Itoa(pl.Strength))
		}
	}

	stA, stB := roster.Stats(teamA), roster.Stats(teamB)
	score := balance.Evaluate(teamA, teamB)
	return fmt.Sprintf("%s\nA: %d players, strength %d (avg %.2f)\nB: %d players, strength %d (avg %.2f)\nscore %d %+v",
		tbl.Draw(),
		stA.Players, stA.Strength, stA.AvgStrength(),
		stB.Players, stB.Strength, stB.AvgStrength(),
		score.Total, score)
}
