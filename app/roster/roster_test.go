package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRecord_Resolve(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want Player
	}{
		{
			name: "all columns empty",
			rec:  Record{ID: "p1", Name: " Max "},
			want: Player{ID: "p1", Name: "Max", Strength: 3, Active: true},
		},
		{
			name: "strength out of range",
			rec:  Record{ID: "p2", Name: "Tom", Strength: ptr(9)},
			want: Player{ID: "p2", Name: "Tom", Strength: 3, Active: true},
		},
		{
			name: "strength zero",
			rec:  Record{ID: "p3", Name: "Tim", Strength: ptr(0)},
			want: Player{ID: "p3", Name: "Tim", Strength: 3, Active: true},
		},
		{
			name: "fully set",
			rec: Record{
				ID: "p4", Name: "Jan", Age: ptr("over32"), Position: ptr("goalkeeper"),
				Strength: ptr(5), Active: ptr(false),
			},
			want: Player{ID: "p4", Name: "Jan", Age: AgeOver32, Position: PositionGoalkeeper, Strength: 5},
		},
		{
			name: "unknown enums",
			rec:  Record{ID: "p5", Name: "Ole", Age: ptr("junior"), Position: ptr("midfield"), Strength: ptr(1)},
			want: Player{ID: "p5", Name: "Ole", Strength: 1, Active: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Resolve())
		})
	}
}

func TestPlayer_RecordRoundTrip(t *testing.T) {
	pl := Player{ID: "x", Name: "Kai", Age: AgeSenior, Position: PositionDefense, Strength: 4, Active: true}
	assert.Equal(t, pl, pl.Record().Resolve())

	rec := Player{ID: "y", Name: "Lea", Strength: 2}.Record()
	assert.Nil(t, rec.Age)
	assert.Nil(t, rec.Position)
}

func TestParsePosition(t *testing.T) {
	for in, want := range map[string]Position{
		"":           PositionUnset,
		"GK":         PositionGoalkeeper,
		"goalkeeper": PositionGoalkeeper,
		"def":        PositionDefense,
		" Attack ":   PositionAttack,
	} {
		got, err := ParsePosition(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"libero", "a", "d"} {
		_, err := ParsePosition(in)
		assert.Error(t, err, in)
	}
}

func TestParseAgeGroup(t *testing.T) {
	got, err := ParseAgeGroup("Ü32")
	require.NoError(t, err)
	assert.Equal(t, AgeOver32, got)

	got, err = ParseAgeGroup("AH")
	require.NoError(t, err)
	assert.Equal(t, AgeSenior, got)

	for _, in := range []string{"u19", "u32"} {
		_, err = ParseAgeGroup(in)
		assert.Error(t, err, in)
	}
}

func TestPlayer_Strong(t *testing.T) {
	assert.True(t, Player{Strength: 4, Position: PositionAttack}.Strong())
	assert.True(t, Player{Strength: 5}.Strong())
	assert.False(t, Player{Strength: 3}.Strong())
	assert.False(t, Player{Strength: 5, Position: PositionGoalkeeper}.Strong())
}

func TestSortForDisplay(t *testing.T) {
	in := []Player{
		{ID: "1", Name: "zoe", Position: PositionAttack},
		{ID: "2", Name: "Anna"},
		{ID: "3", Name: "Bert", Position: PositionDefense},
		{ID: "4", Name: "Carl", Position: PositionGoalkeeper},
		{ID: "5", Name: "adam", Position: PositionDefense},
		{ID: "6", Name: "Bob", Position: PositionAttack},
	}

	got := SortForDisplay(in)
	var names []string
	for _, pl := range got {
		names = append(names, pl.Name)
	}
	assert.Equal(t, []string{"Carl", "adam", "Bert", "Bob", "zoe", "Anna"}, names)
	assert.Equal(t, "zoe", in[0].Name, "input must stay untouched")
}

func TestAssignment_Split(t *testing.T) {
	players := []Player{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	asg := Assignment{"a": SideA, "b": SideB, "c": SideNone}

	teamA, teamB, pool := asg.Split(players)
	assert.Equal(t, []Player{{ID: "a"}}, teamA)
	assert.Equal(t, []Player{{ID: "b"}}, teamB)
	assert.Equal(t, []Player{{ID: "c"}}, pool)

	asg.Reset()
	assert.Equal(t, Assignment{"a": SideNone, "b": SideNone, "c": SideNone}, asg)
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"a": SideA, "B": SideB, "pool": SideNone, "2": SideB} {
		got, err := ParseSide(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSide("c")
	assert.Error(t, err)
	assert.Equal(t, SideB, SideA.Other())
	assert.Equal(t, SideNone, SideNone.Other())
}

func TestStats(t *testing.T) {
	team := []Player{
		{Position: PositionGoalkeeper, Strength: 5, Age: AgeOver32},
		{Position: PositionDefense, Strength: 4, Age: AgeSenior},
		{Position: PositionAttack, Strength: 2},
		{Strength: 4},
	}

	st := Stats(team)
	assert.Equal(t, TeamStats{
		Players: 4, Goalkeepers: 1, Defenders: 1, Attackers: 1,
		Seniors: 1, Over32: 1, Strength: 15, Strong: 2,
	}, st)
	assert.InDelta(t, 3.75, st.AvgStrength(), 0.001)
	assert.Zero(t, Stats(nil).AvgStrength())
}
