package twilio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallTwiMLContainsScriptAndGather(t *testing.T) {
	xml := CallTwiML("follow_up", "", "/webhooks/voice/response")

	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, "Website-Vorschau")
	assert.Contains(t, xml, `<Gather numDigits="1" action="/webhooks/voice/response" method="POST">`)
	assert.Contains(t, xml, "<Hangup/>")
}

func TestCallTwiMLPersonalizesIntro(t *testing.T) {
	xml := CallTwiML("cold_call", "Müller AG", "/r")
	assert.Contains(t, xml, "für Müller AG")
}

func TestCallTwiMLFallsBackOnUnknownScript(t *testing.T) {
	unknown := CallTwiML("no_such_script", "", "/r")
	def := CallTwiML(DefaultScript, "", "/r")
	assert.Equal(t, def, unknown)
}

func TestCallTwiMLEscapesInjectedMarkup(t *testing.T) {
	xml := CallTwiML("cold_call", `<Say>evil</Say>`, "/r")
	assert.NotContains(t, xml, "<Say>evil</Say>")
	assert.Contains(t, xml, "&lt;Say&gt;evil&lt;/Say&gt;")
}

func TestResponseTwiML(t *testing.T) {
	assert.Contains(t, ResponseTwiML("1"), "Terminvereinbarung")
	assert.Contains(t, ResponseTwiML("2"), "Mehr Infos")
	assert.Contains(t, ResponseTwiML("3"), "Auflegen")
	assert.Contains(t, ResponseTwiML("7"), "Unbekannt")
	assert.Contains(t, ResponseTwiML(""), "Unbekannt")
}

func TestKnownScript(t *testing.T) {
	assert.True(t, KnownScript("cold_call"))
	assert.True(t, KnownScript("closing"))
	assert.False(t, KnownScript("nope"))
}
