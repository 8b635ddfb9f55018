package driver

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vealocia/advdb-final-proj/core/ssi"
)

func newTestDriver() (*Driver, *ssi.TransactionManager) {
	tm := ssi.NewTransactionManager(ssi.NewStreamEmitter(io.Discard), zap.NewNop(), nil)
	return New(tm, zap.NewNop()), tm
}

func TestRunAdvancesTickPerLineIncludingBlanks(t *testing.T) {
	d, tm := newTestDriver()
	input := "begin(T1)\n\nR(T1,x2)\n"
	require.NoError(t, d.Run(strings.NewReader(input)))
	assert.Equal(t, 3, tm.Now())
}

func TestRunCountsMalformedLines(t *testing.T) {
	d, _ := newTestDriver()
	input := "begin(T1)\nnot a real command\nR(T1,x2)\n"
	require.NoError(t, d.Run(strings.NewReader(input)))
	assert.Equal(t, 1, d.MalformedCount())
}

func TestRunDrivesFirstCommitterWinsScenario(t *testing.T) {
	d, tm := newTestDriver()
	input := strings.Join([]string{
		"begin(T1)",
		"begin(T2)",
		"W(T1,x1,101)",
		"W(T2,x2,202)",
		"W(T1,x2,102)",
		"W(T2,x1,201)",
		"end(T2)",
		"end(T1)",
		"dump()",
	}, "\n") + "\n"

	require.NoError(t, d.Run(strings.NewReader(input)))

	t1, _ := tm.Status("T1")
	t2, _ := tm.Status("T2")
	assert.Equal(t, ssi.Aborted, t1.Status)
	assert.Equal(t, ssi.Committed, t2.Status)
	assert.Equal(t, 0, d.MalformedCount())
}

func TestUnknownTransactionIsProtocolViolationNotMalformed(t *testing.T) {
	d, _ := newTestDriver()
	require.NoError(t, d.Run(strings.NewReader("end(Tghost)\n")))
	assert.Equal(t, 0, d.MalformedCount())
}
