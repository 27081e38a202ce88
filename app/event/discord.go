package event

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/syohex/go-texttable"
	"golang.org/x/sync/errgroup"

	"github.com/HomerJax/SKV-Strich-App/app/balance"
	"github.com/HomerJax/SKV-Strich-App/app/roster"
	"github.com/HomerJax/SKV-Strich-App/app/store"
)

// Discord is a handler for Discord commands.
type Discord struct {
	Token          string
	AdminIDs       []string
	Service        *store.Service
	HandlerTimeout time.Duration
	Trials         int // balancer trials per !teams call
	se             *discordgo.Session
}

type command func(ctx context.Context, args []string) (reply string, err error)

// Run runs the Discord handler.
// Blocking call.
func (d *Discord) Run(ctx context.Context) error {
	if d.HandlerTimeout == 0 {
		d.HandlerTimeout = 5 * time.Second
	}

	se, err := d.newSession()
	if err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	d.se = se

	log.Printf("[INFO] opening discord session")
	if err := d.se.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	<-ctx.Done()

	log.Printf("[WARN] stopping bot with reason: %v", context.Cause(ctx))
	if err := d.se.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}

	return nil
}

// newSession prepares a session that is not connected yet. Intents and
// handlers must be set before Open, which sends them with the identify call.
func (d *Discord) newSession() (*discordgo.Session, error) {
	se, err := discordgo.New(fmt.Sprintf("Bot %s", d.Token))
	if err != nil {
		return nil, err
	}

	se.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	se.AddHandler(d.onMessage)
	return se, nil
}

func (d *Discord) onMessage(s *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author.ID == s.State.User.ID {
		return // ignore messages from the bot
	}

	log.Printf("[DEBUG] received message from %s: %s", msg.ChannelID, msg.Content)

	ctx, cancel := context.WithTimeout(context.Background(), d.HandlerTimeout)
	defer cancel()

	reply, ok := d.handle(ctx, msg.Author.ID, msg.Content)
	if !ok {
		return // do nothing
	}

	replyTo := &discordgo.MessageReference{MessageID: msg.ID, ChannelID: msg.ChannelID}
	if _, err := s.ChannelMessageSendReply(msg.ChannelID, reply, replyTo); err != nil {
		log.Printf("[WARN] failed to send message: %v", err)
	}
}

// handle runs the command in the message content on behalf of the sender.
// It returns false if the message is not a command for the bot.
func (d *Discord) handle(ctx context.Context, senderID, content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" || !strings.HasPrefix(content, "!") {
		return "", false
	}

	ctx = context.WithValue(ctx, senderIDKey{}, senderID)

	fields := strings.Fields(content)
	name, args := strings.ToLower(fields[0]), fields[1:] // first word is the command itself

	cmd, admin := d.lookup(name)
	if cmd == nil {
		return "", false
	}
	if admin && !d.isAdmin(senderID) {
		return "this command is for admins only", true
	}

	reply, err := cmd(ctx, args)
	if err != nil {
		if friendly, ok := explain(err); ok {
			return friendly, true
		}
		log.Printf("[WARN] failed to execute command %s: %v", name, err)
		return "failed to execute command, check logs", true
	}
	return reply, true
}

// lookup returns the handler of the command and whether it needs an admin.
func (d *Discord) lookup(name string) (cmd command, admin bool) {
	switch name {
	case "!players":
		return d.players, false
	case "!addplayer":
		return d.addPlayer, true
	case "!strength":
		return d.strength, true
	case "!active":
		return d.active, true
	case "!season":
		return d.season, true
	case "!seasons":
		return d.seasons, false
	case "!session":
		return d.session, true
	case "!sessions":
		return d.sessions, false
	case "!present":
		return d.present, true
	case "!teams":
		return d.teams, true
	case "!move":
		return d.move, true
	case "!lineup":
		return d.lineup, false
	case "!result":
		return d.result, true
	case "!unresult":
		return d.unresult, true
	case "!ping":
		return d.ping, false
	case "!help":
		return d.help, false
	default:
		return nil, false
	}
}

// explain turns an error a user can act on into a reply.
func explain(err error) (string, bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return err.Error(), true
	case errors.Is(err, store.ErrLocked):
		return "the session already has a result, remove it with !unresult first", true
	case errors.Is(err, store.ErrNotPresent):
		return "the player is not present at this session, add with !present first", true
	case errors.Is(err, store.ErrInactive):
		return "inactive players can't attend: " + err.Error(), true
	case errors.Is(err, store.ErrIncomplete):
		return "can't save the result: " + err.Error(), true
	case errors.Is(err, store.ErrInvalidInput):
		return err.Error(), true
	case errors.Is(err, balance.ErrInsufficientPlayers):
		return "not enough players to make two teams", true
	case errors.Is(err, balance.ErrNoValidPartition):
		return "no split satisfies the size rule, try !teams <session> free", true
	default:
		return "", false
	}
}

func (d *Discord) players(ctx context.Context, _ []string) (string, error) {
	players, err := d.Service.Players(ctx, false)
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "no players yet, add with !addplayer", nil
	}

	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader("Name", "Position", "Age", "Active")
	for _, pl := range roster.SortForDisplay(players) {
		_ = tbl.AddRow(pl.Name, pl.Position.String(), pl.Age.String(), onOff(pl.Active))
	}
	return "```\n" + tbl.Draw() + "\n```", nil
}

func (d *Discord) addPlayer(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !addplayer <name> [goalkeeper|defense|attack] [senior|over32]"

	// optional trailing position and age group, the rest is the name
	var pos roster.Position
	var age roster.AgeGroup
	if len(args) > 1 {
		if a, err := roster.ParseAgeGroup(args[len(args)-1]); err == nil {
			age, args = a, args[:len(args)-1]
		}
	}
	if len(args) > 1 {
		if p, err := roster.ParsePosition(args[len(args)-1]); err == nil {
			pos, args = p, args[:len(args)-1]
		}
	}
	if len(args) == 0 {
		return usage, nil
	}

	pl, err := d.Service.AddPlayer(ctx, strings.Join(args, " "), pos, age)
	if err != nil {
		return "", err
	}

	log.Printf("[INFO] player %q added by %s", pl.Name, senderID(ctx))
	return fmt.Sprintf("player %s added", pl.Name), nil
}

func (d *Discord) strength(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "usage: !strength <name> <1-5>", nil
	}

	value, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return "strength must be a number from 1 to 5", nil
	}

	pl, err := d.playerByName(ctx, strings.Join(args[:len(args)-1], " "))
	if err != nil {
		return "", err
	}

	if _, err = d.Service.UpdatePlayer(ctx, pl.ID, store.PlayerPatch{Strength: &value}); err != nil {
		return "", err
	}
	return fmt.Sprintf("strength of %s set", pl.Name), nil
}

func (d *Discord) active(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !active <name> <on|off>"
	if len(args) < 2 {
		return usage, nil
	}

	var active bool
	switch strings.ToLower(args[len(args)-1]) {
	case "on", "yes", "true":
		active = true
	case "off", "no", "false":
		active = false
	default:
		return usage, nil
	}

	pl, err := d.playerByName(ctx, strings.Join(args[:len(args)-1], " "))
	if err != nil {
		return "", err
	}

	if _, err = d.Service.UpdatePlayer(ctx, pl.ID, store.PlayerPatch{Active: &active}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is now %s", pl.Name, map[bool]string{true: "active", false: "inactive"}[active]), nil
}

func (d *Discord) season(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !season <name> <from YYYY-MM-DD> [to YYYY-MM-DD]"
	if len(args) < 2 || len(args) > 3 {
		return usage, nil
	}

	start, err := time.Parse(store.DateLayout, args[1])
	if err != nil {
		return usage, nil
	}

	var end *time.Time
	if len(args) == 3 {
		e, err := time.Parse(store.DateLayout, args[2])
		if err != nil {
			return usage, nil
		}
		end = &e
	}

	season, err := d.Service.CreateSeason(ctx, args[0], start, end)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("season %s created", season), nil
}

func (d *Discord) seasons(ctx context.Context, _ []string) (string, error) {
	seasons, err := d.Service.Seasons(ctx)
	if err != nil {
		return "", err
	}
	if len(seasons) == 0 {
		return "no seasons yet, add with !season", nil
	}

	now := time.Now()
	lines := make([]string, len(seasons))
	for i, season := range seasons {
		lines[i] = season.String()
		if season.Contains(now) {
			lines[i] += " current"
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Discord) session(ctx context.Context, args []string) (string, error) {
	date := time.Now()
	if len(args) > 0 {
		if dt, err := time.Parse(store.DateLayout, args[0]); err == nil {
			date, args = dt, args[1:]
		}
	}

	sess, err := d.Service.CreateSession(ctx, date, strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("session %s created", sess), nil
}

func (d *Discord) sessions(ctx context.Context, _ []string) (string, error) {
	sessions, err := d.Service.ListSessions(ctx, nil)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "no sessions yet, add with !session", nil
	}

	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader("ID", "Date", "Notes")
	for _, sess := range sessions {
		_ = tbl.AddRow(strconv.FormatInt(sess.ID, 10), sess.Date.Format(store.DateLayout), sess.Notes)
	}
	return "```\n" + tbl.Draw() + "\n```", nil
}

// present toggles the presence of the comma separated player names.
func (d *Discord) present(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !present <session> <name>[, <name>...]"
	if len(args) < 2 {
		return usage, nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return usage, nil
	}

	names := splitNames(strings.Join(args[1:], " "))
	if len(names) == 0 {
		return usage, nil
	}

	players, err := d.playersByName(ctx, names)
	if err != nil {
		return "", err
	}

	// a name given twice is toggled once
	unique := make([]roster.Player, 0, len(players))
	seen := make(map[string]bool, len(players))
	for _, pl := range players {
		if !seen[pl.ID] {
			seen[pl.ID] = true
			unique = append(unique, pl)
		}
	}

	present, err := d.Service.TogglePresences(ctx, sessionID, roster.IDs(unique)...)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(unique))
	for _, pl := range unique {
		lines = append(lines, fmt.Sprintf("%s: %s", pl.Name, map[bool]string{true: "present", false: "absent"}[present[pl.ID]]))
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Discord) teams(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !teams <session> [free|even|strict]"
	if len(args) < 1 || len(args) > 2 {
		return usage, nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return usage, nil
	}

	opts := balance.Options{Trials: d.Trials}
	if len(args) == 2 {
		if opts.Rule, err = balance.ParseSizeRule(args[1]); err != nil {
			return usage, nil
		}
	}

	lineup, err := d.Service.GenerateTeams(ctx, sessionID, opts)
	if err != nil {
		return "", err
	}
	return renderLineup(lineup), nil
}

func (d *Discord) move(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !move <session> <name> <a|b|pool>"
	if len(args) < 3 {
		return usage, nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return usage, nil
	}
	side, err := roster.ParseSide(args[len(args)-1])
	if err != nil {
		return usage, nil
	}

	pl, err := d.playerByName(ctx, strings.Join(args[1:len(args)-1], " "))
	if err != nil {
		return "", err
	}

	if err := d.Service.Move(ctx, sessionID, pl.ID, side); err != nil {
		return "", err
	}

	lineup, err := d.Service.Lineup(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return renderLineup(lineup), nil
}

func (d *Discord) lineup(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "usage: !lineup <session>", nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return "usage: !lineup <session>", nil
	}

	lineup, err := d.Service.Lineup(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return renderLineup(lineup), nil
}

func (d *Discord) result(ctx context.Context, args []string) (string, error) {
	const usage = "usage: !result <session> <goalsA> <goalsB>"
	if len(args) != 3 {
		return usage, nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return usage, nil
	}

	goals := make([]*int, 2)
	for i, arg := range args[1:] {
		if arg == "?" || arg == "-" {
			continue // unknown score
		}
		g, err := strconv.Atoi(arg)
		if err != nil {
			return usage, nil
		}
		goals[i] = &g
	}

	res, err := d.Service.SaveResult(ctx, sessionID, goals[0], goals[1])
	if err != nil {
		return "", err
	}

	log.Printf("[INFO] result %s of session %d saved by %s", res, sessionID, senderID(ctx))
	return fmt.Sprintf("result %s saved, session %d is locked", res, sessionID), nil
}

func (d *Discord) unresult(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "usage: !unresult <session>", nil
	}

	sessionID, err := parseSessionID(args[0])
	if err != nil {
		return "usage: !unresult <session>", nil
	}

	if err := d.Service.DeleteResult(ctx, sessionID); err != nil {
		return "", err
	}

	log.Printf("[INFO] result of session %d removed by %s", sessionID, senderID(ctx))
	return fmt.Sprintf("result removed, session %d is open again and everyone is back in the pool", sessionID), nil
}

// playerByName returns an active or inactive player by its exact name.
func (d *Discord) playerByName(ctx context.Context, name string) (roster.Player, error) {
	if strings.TrimSpace(name) == "" {
		return roster.Player{}, fmt.Errorf("%w: empty name", store.ErrInvalidInput)
	}
	return d.Service.Player(ctx, name)
}

// playersByName looks up all the players, keeping the order of the names.
func (d *Discord) playersByName(ctx context.Context, names []string) ([]roster.Player, error) {
	res := make([]roster.Player, len(names))
	mu := &sync.Mutex{}

	ewg, ctx := errgroup.WithContext(ctx)
	for idx, name := range names {
		idx, name := idx, name
		ewg.Go(func() error {
			pl, err := d.playerByName(ctx, name)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			res[idx] = pl
			return nil
		})
	}

	if err := ewg.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Discord) isAdmin(discordID string) bool {
	for _, id := range d.AdminIDs {
		if discordID == id {
			return true
		}
	}
	return false
}

func (d *Discord) ping(context.Context, []string) (string, error) { return "pong!", nil }

func (d *Discord) help(context.Context, []string) (reply string, err error) {
	return `
!players - Spielerliste
!addplayer <name> [goalkeeper|defense|attack] [senior|over32] - nur Admins, neuer Spieler
!strength <name> <1-5> - nur Admins, Stärke setzen
!active <name> <on|off> - nur Admins, Spieler aktiv/inaktiv
!season <name> <von YYYY-MM-DD> [bis YYYY-MM-DD] - nur Admins, neue Saison
!seasons - Saisons
!session [YYYY-MM-DD] [notiz] - nur Admins, neues Training
!sessions - Trainings
!present <training> <name>[, <name>...] - nur Admins, Anwesenheit umschalten
!teams <training> [free|even|strict] - nur Admins, Teams auslosen (nochmal = neu auslosen)
!move <training> <name> <a|b|pool> - nur Admins, Spieler verschieben
!lineup <training> - Teams anzeigen
!result <training> <toreA> <toreB> - nur Admins, Ergebnis speichern und Training sperren
!unresult <training> - nur Admins, Ergebnis löschen
!ping - pong!
!help - diese Nachricht
	`, nil
}

// renderLineup draws the teams side by side with the pool in a code block.
func renderLineup(l store.Lineup) string {
	var sb strings.Builder
	sb.WriteString(l.Session.String())
	if l.Locked() {
		fmt.Fprintf(&sb, ", result %s", l.Result)
		if w := l.Result.Winner(); w != roster.SideNone {
			fmt.Fprintf(&sb, ", %s won", w)
		}
		sb.WriteString(" (locked)")
	}
	sb.WriteString("\n```\n")

	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader(
		fmt.Sprintf("A (%d)", len(l.TeamA)),
		fmt.Sprintf("B (%d)", len(l.TeamB)),
		fmt.Sprintf("Pool (%d)", len(l.Pool)),
	)

	rows := max(len(l.TeamA), len(l.TeamB), len(l.Pool))
	for i := 0; i < rows; i++ {
		_ = tbl.AddRow(cell(l.TeamA, i), cell(l.TeamB, i), cell(l.Pool, i))
	}
	if rows > 0 {
		_ = tbl.AddRow(summary(l.StatsA), summary(l.StatsB), "")
	}

	sb.WriteString(tbl.Draw())
	sb.WriteString("\n```")
	return sb.String()
}

func cell(players []roster.Player, i int) string {
	if i >= len(players) {
		return ""
	}
	pl := players[i]
	if pl.Position == roster.PositionUnset {
		return pl.Name
	}
	return fmt.Sprintf("%s (%s)", pl.Name, pl.Position)
}

func summary(st roster.TeamStats) string {
	return fmt.Sprintf("gk %d, def %d, att %d, ü32 %d", st.Goalkeepers, st.Defenders, st.Attackers, st.Over32)
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseSessionID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
}

// splitNames splits a comma separated list of names, dropping empty ones.
func splitNames(s string) []string {
	var res []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			res = append(res, name)
		}
	}
	return res
}

type senderIDKey struct{}

func senderID(ctx context.Context) string {
	if v := ctx.Value(senderIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}
