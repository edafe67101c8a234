package hfp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpreterHandshake(t *testing.T) {
	in := NewInterpreter()

	tests := []struct {
		name  string
		cmd   string
		reply string
		event Event
	}{
		{"brsf", "AT+BRSF=191\r", "\r\n+BRSF: 0\r\n\r\nOK\r\n", EventNone},
		{"brsf fragment", "\r\nAT+BRSF=0", "\r\n+BRSF: 0\r\n\r\nOK\r\n", EventNone},
		{"cind test", "AT+CIND=?\r", "\r\n+CIND: (\"service\",(0,1)),(\"call\",(0,1))\r\n\r\nOK\r\n", EventNone},
		{"cind read", "AT+CIND?\r", "\r\n+CIND: 1,0\r\n\r\nOK\r\n", EventNone},
		{"cmer", "AT+CMER=1,0,0,0\r", "\r\nOK\r\n", EventIndicatorsEnabled},
		{"cmer other mode", "AT+CMER=3,0,0,1\r", "\r\nOK\r\n", EventIndicatorsEnabled},
		{"chld", "AT+CHLD=?\r", "\r\n+CHLD: 0\r\n\r\nOK\r\n", EventNone},
		{"unknown", "AT+BAC=1,2\r", "\r\nERROR\r\n", EventNone},
		{"cind without terminator", "AT+CIND=?", "\r\nERROR\r\n", EventNone},
		{"cind with trailing data", "AT+CIND?\rAT+CMER", "\r\nERROR\r\n", EventNone},
		{"empty", "", "\r\nERROR\r\n", EventNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := in.Handle([]byte(tt.cmd))
			assert.Equal(t, tt.reply, string(res.Reply))
			assert.Equal(t, tt.event, res.Event)
		})
	}
}

func TestInterpreterExtraRulesFirst(t *testing.T) {
	in := NewInterpreter(Rule{
		Name:    "BRSF-features",
		Match:   Contains("AT+BRSF="),
		Respond: Reply(EventNone, "+BRSF: 32", ResultOK),
	})

	res := in.Handle([]byte("AT+BRSF=0\r"))
	assert.Equal(t, "BRSF-features", res.Rule)
	assert.Equal(t, "\r\n+BRSF: 32\r\n\r\nOK\r\n", string(res.Reply))

	res = in.Handle([]byte("AT+CHLD=?\r"))
	assert.Equal(t, "CHLD=?", res.Rule)
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "\r\nRING\r\n", string(Encode("RING")))
	assert.Equal(t, "\r\nOK\r\n\r\nERROR\r\n", string(Encode(ResultOK, ResultError)))
	assert.Empty(t, Encode())
}
