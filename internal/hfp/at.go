package hfp

import (
	"bytes"
	"strings"
)

// Final result codes.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"
)

// Event is a handshake milestone reported by the interpreter.
type Event int

const (
	// EventNone means the command did not change the handshake state.
	EventNone Event = iota

	// EventIndicatorsEnabled is reported for AT+CMER, after which the peer
	// accepts an audio connection.
	EventIndicatorsEnabled
)

// Matcher reports whether a received chunk selects a rule.
type Matcher func(cmd []byte) bool

// Responder returns the payloads to send back for a matched chunk, final
// result code included, and the milestone it reaches.
type Responder func(cmd []byte) (payloads []string, ev Event)

// Rule is one entry of the interpreter's dispatch table.
type Rule struct {
	Name    string
	Match   Matcher
	Respond Responder
}

// Contains matches chunks containing s.
func Contains(s string) Matcher {
	p := []byte(s)
	return func(cmd []byte) bool { return bytes.Contains(cmd, p) }
}

// Exactly matches chunks equal to s.
func Exactly(s string) Matcher {
	p := []byte(s)
	return func(cmd []byte) bool { return bytes.Equal(cmd, p) }
}

// Reply returns a Responder sending fixed payloads.
func Reply(ev Event, payloads ...string) Responder {
	return func([]byte) ([]string, Event) { return payloads, ev }
}

// defaultRules is the minimal service level handshake of an audio gateway
// with no extended features, one service indicator and one call indicator.
var defaultRules = []Rule{
	{"BRSF", Contains("AT+BRSF="), Reply(EventNone, "+BRSF: 0", ResultOK)},
	{"CIND=?", Exactly("AT+CIND=?\r"), Reply(EventNone, `+CIND: ("service",(0,1)),("call",(0,1))`, ResultOK)},
	{"CIND?", Exactly("AT+CIND?\r"), Reply(EventNone, "+CIND: 1,0", ResultOK)},
	{"CMER", Contains("AT+CMER="), Reply(EventIndicatorsEnabled, ResultOK)},
	{"CHLD=?", Exactly("AT+CHLD=?\r"), Reply(EventNone, "+CHLD: 0", ResultOK)},
}

// Result is the outcome of interpreting one chunk.
type Result struct {
	// Rule is the name of the matched rule, empty if none matched.
	Rule string

	// Reply is the encoded response to write to the peer.
	Reply []byte

	Event Event
}

// Interpreter answers AT commands from a fixed dispatch table. It holds no
// state; the first matching rule wins and unmatched input gets ERROR.
type Interpreter struct {
	rules []Rule
}

// NewInterpreter returns an interpreter with the default handshake rules.
// Extra rules are consulted before the defaults.
func NewInterpreter(extra ...Rule) *Interpreter {
	rules := make([]Rule, 0, len(extra)+len(defaultRules))
	rules = append(rules, extra...)
	rules = append(rules, defaultRules...)

	return &Interpreter{rules: rules}
}

// Handle interprets one received chunk.
func (in *Interpreter) Handle(cmd []byte) Result {
	for _, r := range in.rules {
		if !r.Match(cmd) {
			continue
		}

		payloads, ev := r.Respond(cmd)

		return Result{Rule: r.Name, Reply: Encode(payloads...), Event: ev}
	}

	return Result{Reply: Encode(ResultError)}
}

// Encode wraps each payload as a response line, \r\n<payload>\r\n.
func Encode(payloads ...string) []byte {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("\r\n")
		b.WriteString(p)
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}
