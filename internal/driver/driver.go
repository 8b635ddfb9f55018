package driver

import (
	"bufio"
	"io"

	"go.uber.org/zap"

	"github.com/vealocia/advdb-final-proj/core/ssi"
)

// Driver threads a single *ssi.TransactionManager through an input
// stream, one command per tick, per spec.md §5. It owns nothing the
// manager doesn't already own — Driver itself is stateless beyond the
// malformed-line tally used for the process exit code.
type Driver struct {
	tm        *ssi.TransactionManager
	log       *zap.Logger
	malformed int
}

// New wraps tm. log may be nil (a nop logger is substituted).
func New(tm *ssi.TransactionManager, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{tm: tm, log: log.Named("driver")}
}

// MalformedCount returns how many input lines failed to parse.
func (d *Driver) MalformedCount() int { return d.malformed }

// RunLine advances the tick and drives tm through one input line, per
// spec.md §5 ("the tick counter advances by 1 per newline regardless of
// whether the line carried an action").
func (d *Driver) RunLine(raw string) {
	tick := d.tm.Advance()

	cmd, err := ParseLine(raw)
	if err != nil {
		d.malformed++
		d.log.Warn("malformed input line", zap.Int("tick", tick), zap.String("line", raw), zap.Error(err))
		return
	}

	switch cmd.Kind {
	case KindBlank:
		return
	case KindBegin:
		d.tm.Begin(cmd.Tx)
	case KindBeginReadOnly:
		d.tm.BeginReadOnly(cmd.Tx)
	case KindRead:
		d.reportProtocol(tick, raw, d.tm.Read(cmd.Tx, cmd.Var))
	case KindWrite:
		d.reportProtocol(tick, raw, d.tm.Write(cmd.Tx, cmd.Var, cmd.Value))
	case KindEnd:
		d.reportProtocol(tick, raw, d.tm.End(cmd.Tx))
	case KindFail:
		d.reportProtocol(tick, raw, d.tm.Fail(cmd.Site))
	case KindRecover:
		d.reportProtocol(tick, raw, d.tm.Recover(cmd.Site))
	case KindDump:
		d.tm.Dump()
	}
}

// reportProtocol logs a protocol violation (§7) returned by the manager
// without treating it as a driver-level error: the tick has already
// advanced and the line is otherwise consumed.
func (d *Driver) reportProtocol(tick int, raw string, err error) {
	if err == nil {
		return
	}
	d.log.Warn("protocol violation", zap.Int("tick", tick), zap.String("line", raw), zap.Error(err))
}

// Run consumes every line of r until EOF, in order.
func (d *Driver) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.RunLine(scanner.Text())
	}
	return scanner.Err()
}
