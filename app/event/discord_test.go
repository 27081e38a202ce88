package event

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HomerJax/SKV-Strich-App/app/balance"
	"github.com/HomerJax/SKV-Strich-App/app/roster"
	"github.com/HomerJax/SKV-Strich-App/app/store"
)

const admin = "admin-1"

func newTestDiscord(t *testing.T) *Discord {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &Discord{AdminIDs: []string{admin}, Service: store.NewService(s), Trials: 20}
}

// run executes the command as an admin and returns the reply.
func run(t *testing.T, d *Discord, content string) string {
	t.Helper()
	reply, ok := d.handle(context.Background(), admin, content)
	require.True(t, ok, "command %q not handled", content)
	return reply
}

func TestDiscord_IgnoresNonCommands(t *testing.T) {
	d := newTestDiscord(t)

	for _, content := range []string{"", "  ", "hello", "!unknown", "! players"} {
		_, ok := d.handle(context.Background(), admin, content)
		assert.False(t, ok, content)
	}
}

func TestDiscord_AdminOnly(t *testing.T) {
	d := newTestDiscord(t)

	reply, ok := d.handle(context.Background(), "someone", "!addplayer Max")
	require.True(t, ok)
	assert.Equal(t, "this command is for admins only", reply)

	reply, ok = d.handle(context.Background(), "someone", "!ping")
	require.True(t, ok)
	assert.Equal(t, "pong!", reply)

	assert.True(t, d.isAdmin(admin))
	assert.False(t, d.isAdmin(""))
}

func TestDiscord_Players(t *testing.T) {
	d := newTestDiscord(t)

	assert.Equal(t, "no players yet, add with !addplayer", run(t, d, "!players"))

	assert.Equal(t, "player Max Mustermann added", run(t, d, "!addplayer Max Mustermann goalkeeper over32"))
	assert.Equal(t, "player Anna added", run(t, d, "!addplayer Anna att"))
	assert.Equal(t, "player Jo D added", run(t, d, "!addplayer Jo D"), "a single letter is part of the name")
	assert.Contains(t, run(t, d, "!addplayer anna"), "already exists")

	pl, err := d.Service.Player(context.Background(), "max mustermann")
	require.NoError(t, err)
	assert.Equal(t, roster.PositionGoalkeeper, pl.Position)
	assert.Equal(t, roster.AgeOver32, pl.Age)

	assert.Equal(t, "strength of Anna set", run(t, d, "!strength anna 5"))
	assert.Contains(t, run(t, d, "!strength anna 9"), "strength must be within 1..5")
	assert.Equal(t, "strength must be a number from 1 to 5", run(t, d, "!strength anna high"))
	assert.Contains(t, run(t, d, "!strength nobody 3"), "not found")

	assert.Equal(t, "Anna is now inactive", run(t, d, "!active Anna off"))
	assert.Equal(t, "usage: !active <name> <on|off>", run(t, d, "!active Anna maybe"))

	table := run(t, d, "!players")
	assert.True(t, strings.HasPrefix(table, "```"))
	assert.Contains(t, table, "Max Mustermann")
	assert.Contains(t, table, "goalkeeper")
	assert.NotContains(t, table, "Strength", "strength stays private")
	assert.Less(t, strings.Index(table, "Max Mustermann"), strings.Index(table, "Anna"), "keepers first")
}

func TestDiscord_SeasonsAndSessions(t *testing.T) {
	d := newTestDiscord(t)

	assert.Equal(t, "no seasons yet, add with !season", run(t, d, "!seasons"))
	assert.Equal(t, "season 2025 (2025-01-01..) created", run(t, d, "!season 2025 2025-01-01"))
	assert.Contains(t, run(t, d, "!season 2024 2024-12-31 2024-01-01"), "ends before it starts")
	assert.Contains(t, run(t, d, "!season 2024 yesterday"), "usage:")
	run(t, d, "!season 2020 2020-01-01 2020-12-31")
	assert.Equal(t, "2025 (2025-01-01..) current\n2020 (2020-01-01..2020-12-31)", run(t, d, "!seasons"))

	assert.Equal(t, "session #1 2025-03-04 warm evening created", run(t, d, "!session 2025-03-04 warm evening"))
	sessions := run(t, d, "!sessions")
	assert.Contains(t, sessions, "2025-03-04")
	assert.Contains(t, sessions, "warm evening")
}

func TestDiscord_SessionFlow(t *testing.T) {
	d := newTestDiscord(t)

	names := []string{"Keeper", "Dora", "Dirk", "Anna", "Arne", "Paul"}
	positions := []string{"gk", "def", "def", "att", "att", ""}
	for i, name := range names {
		run(t, d, strings.TrimSpace(fmt.Sprintf("!addplayer %s %s", name, positions[i])))
	}
	run(t, d, "!session 2025-03-04")

	assert.Equal(t, "not enough players to make two teams", run(t, d, "!teams 1"))

	reply := run(t, d, "!present 1 Keeper, Dora, dirk,Anna, Arne, Paul")
	assert.Equal(t, "Keeper: present\nDora: present\nDirk: present\nAnna: present\nArne: present\nPaul: present", reply)
	assert.Contains(t, run(t, d, "!present 1 Nobody"), "not found")
	assert.Contains(t, run(t, d, "!present 1 ,"), "usage:")

	assert.Contains(t, run(t, d, "!result 1 2 1"), "can't save the result")

	reply = run(t, d, "!teams 1 strict")
	assert.Contains(t, reply, "A (3)")
	assert.Contains(t, reply, "B (3)")
	assert.Contains(t, reply, "Pool (0)")
	assert.Contains(t, reply, "Keeper (goalkeeper)")
	assert.Contains(t, run(t, d, "!teams 1 sideways"), "usage:")

	reply = run(t, d, "!move 1 Paul pool")
	assert.Contains(t, reply, "Pool (1)")
	assert.Contains(t, run(t, d, "!move 1 Paul c"), "usage:")

	run(t, d, "!present 1 Paul")
	assert.Contains(t, run(t, d, "!move 1 Paul a"), "not present")
	run(t, d, "!present 1 Paul")
	assert.Contains(t, run(t, d, "!move 1 Paul a"), "Pool (0)")

	assert.Equal(t, "result 3:? saved, session 1 is locked", run(t, d, "!result 1 3 ?"))
	assert.Contains(t, run(t, d, "!lineup 1"), "result 3:? (locked)")
	assert.Equal(t, "the session already has a result, remove it with !unresult first", run(t, d, "!teams 1"))
	assert.Equal(t, "the session already has a result, remove it with !unresult first", run(t, d, "!present 1 Anna"))

	assert.Contains(t, run(t, d, "!unresult 1"), "back in the pool")
	assert.Contains(t, run(t, d, "!lineup 1"), "Pool (6)")
	assert.Contains(t, run(t, d, "!unresult 1"), "not found")
	assert.Contains(t, run(t, d, "!lineup 42"), "not found")
	assert.Equal(t, "usage: !lineup <session>", run(t, d, "!lineup x"))
}

func TestDiscord_PresentChecksEveryNameFirst(t *testing.T) {
	d := newTestDiscord(t)
	run(t, d, "!addplayer Anna")
	run(t, d, "!addplayer Max")
	run(t, d, "!active Max off")
	run(t, d, "!session 2025-03-04")

	assert.Contains(t, run(t, d, "!present 1 Anna, Max"), "inactive players can't attend")
	assert.Contains(t, run(t, d, "!lineup 1"), "Pool (0)", "nobody is toggled when one name fails")

	assert.Equal(t, "Anna: present", run(t, d, "!present 1 Anna, anna"))
	assert.Contains(t, run(t, d, "!lineup 1"), "Pool (1)")
}

func TestDiscord_NewSession(t *testing.T) {
	d := &Discord{Token: "secret"}
	se, err := d.newSession()
	require.NoError(t, err)
	assert.Equal(t, "Bot secret", se.Identify.Token)
	assert.Equal(t, discordgo.IntentsGuildMessages|discordgo.IntentsMessageContent, se.Identify.Intents)
}

func TestRenderLineup(t *testing.T) {
	three, one := 3, 1
	l := store.Lineup{
		Session: store.Session{ID: 2, Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)},
		TeamA:   []roster.Player{{Name: "Kai", Position: roster.PositionGoalkeeper}},
		TeamB:   []roster.Player{{Name: "Ole"}},
		Result:  &store.Result{SessionID: 2, GoalsA: &three, GoalsB: &one},
	}

	out := renderLineup(l)
	assert.True(t, strings.HasPrefix(out, "#2 2025-03-04, result 3:1, A won (locked)\n```"), out)
	assert.Contains(t, out, "Kai (goalkeeper)")
	assert.Contains(t, out, "Ole")

	l.Result = nil
	assert.True(t, strings.HasPrefix(renderLineup(l), "#2 2025-03-04\n```"))
}

func TestDiscord_InactivePlayerRefused(t *testing.T) {
	d := newTestDiscord(t)
	run(t, d, "!addplayer Max")
	run(t, d, "!active Max off")
	run(t, d, "!session 2025-03-04")

	assert.Contains(t, run(t, d, "!present 1 Max"), "inactive players can't attend")
}

func TestExplain(t *testing.T) {
	tbl := []struct {
		err  error
		want string
	}{
		{balance.ErrInsufficientPlayers, "not enough players to make two teams"},
		{fmt.Errorf("balance teams: %w", balance.ErrNoValidPartition), "no split satisfies the size rule, try !teams <session> free"},
		{fmt.Errorf("wrap: %w", store.ErrLocked), "the session already has a result, remove it with !unresult first"},
		{fmt.Errorf("%w: empty name", store.ErrInvalidInput), "invalid input: empty name"},
	}

	for _, tt := range tbl {
		got, ok := explain(tt.err)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)
	}

	_, ok := explain(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"Max Mustermann", "Anna"}, splitNames(" Max Mustermann ,, Anna,"))
	assert.Empty(t, splitNames(" , "))
}

func TestParseSessionID(t *testing.T) {
	id, err := parseSessionID("#12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = parseSessionID("twelve")
	assert.Error(t, err)
}

func TestSenderID(t *testing.T) {
	assert.Equal(t, "", senderID(context.Background()))
	ctx := context.WithValue(context.Background(), senderIDKey{}, "42")
	assert.Equal(t, "42", senderID(ctx))
}
