package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vealocia/advdb-final-proj/core/ssi"
)

func TestParseLineCommands(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"begin(T1)", Command{Kind: KindBegin, Tx: "T1"}},
		{"beginRO(T2)", Command{Kind: KindBeginReadOnly, Tx: "T2"}},
		{"R(T1,x2)", Command{Kind: KindRead, Tx: "T1", Var: "x2"}},
		{"R(T1, x2)", Command{Kind: KindRead, Tx: "T1", Var: "x2"}},
		{"W(T1,x2,100)", Command{Kind: KindWrite, Tx: "T1", Var: "x2", Value: 100}},
		{"W(T1, x2, -5)", Command{Kind: KindWrite, Tx: "T1", Var: "x2", Value: -5}},
		{"end(T1)", Command{Kind: KindEnd, Tx: "T1"}},
		{"fail(2)", Command{Kind: KindFail, Site: 2}},
		{"recover(2)", Command{Kind: KindRecover, Site: 2}},
		{"dump()", Command{Kind: KindDump}},
		{"", Command{Kind: KindBlank}},
		{"   ", Command{Kind: KindBlank}},
		{"// a comment", Command{Kind: KindBlank}},
	}

	for _, c := range cases {
		got, err := ParseLine(c.line)
		require.NoError(t, err, "line %q", c.line)
		assert.Equal(t, c.want.Kind, got.Kind, "line %q", c.line)
		assert.Equal(t, c.want.Tx, got.Tx, "line %q", c.line)
		assert.Equal(t, c.want.Var, got.Var, "line %q", c.line)
		assert.Equal(t, c.want.Value, got.Value, "line %q", c.line)
		assert.Equal(t, c.want.Site, got.Site, "line %q", c.line)
	}
}

func TestParseLineRejectsGarbage(t *testing.T) {
	for _, line := range []string{"bogus", "begin(T1", "R(T1,y2)", "W(T1,x2)"} {
		_, err := ParseLine(line)
		assert.Error(t, err, "line %q should fail to parse", line)
	}
}

func TestParsedVariableAndSiteTypesMatchSSI(t *testing.T) {
	cmd, err := ParseLine("R(T1,x7)")
	require.NoError(t, err)
	assert.Equal(t, ssi.VarID("x7"), cmd.Var)

	cmd, err = ParseLine("fail(3)")
	require.NoError(t, err)
	assert.Equal(t, ssi.SiteID(3), cmd.Site)
}
