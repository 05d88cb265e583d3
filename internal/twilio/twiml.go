package twilio

import (
	"fmt"
	"strings"
)

// Voice scripts spoken on outbound calls, keyed by script name.
// The zero-value fallback greets and asks how to help.
type script struct {
	Intro string
	Hook  string
	Value string
	CTA   string
}

var voiceScripts = map[string]script{
	"cold_call": {
		Intro: "Grüezi, hie isch dr Bottie vo LeadFlow Pro.",
		Hook:  "Ich ha gseh, dass Sie sehr viele positive Bewertige händ.",
		Value: "Mir mached professionelli Websites für Schweizer Unternehme.",
		CTA:   "Händ Sie 5 Minute Zyt für e churzi Besprechig?",
	},
	"follow_up": {
		Intro: "Grüezi, hie isch dr Bottie vo LeadFlow Pro.",
		Hook:  "Ich rüefe a, well mir Ihne e Website-Vorschau gschickt händ.",
		Value: "Händ Sie d Vorschau chöne aaluege?",
		CTA:   "Wär e professionelli Website für Ihres Gschäft interessant?",
	},
	"demo_discussion": {
		Intro: "Grüezi, dr Bottie vo LeadFlow Pro.",
		Hook:  "Vielen Dank für Ihres Interässe a üsere Website-Lösig.",
		Value: "Mir sind spezialisiert uf moderni, performanti Websites für KMU.",
		CTA:   "Söll ich Ihne wyteri Details zeige oder en Termin vereinbare?",
	},
	"closing": {
		Intro: "Grüezi, dr Bottie vo LeadFlow Pro.",
		Hook:  "Schön, dass Sie sich für e professionelli Website interessiere!",
		Value: "Mir chönd gli mit de Umsetzig starte.",
		CTA:   "Söll ich Ihne Details zur Timeline oder zum Design sende?",
	},
}

// DefaultScript is used when an unknown script name is requested.
const DefaultScript = "cold_call"

// KnownScript reports whether the named script exists.
func KnownScript(name string) bool {
	_, ok := voiceScripts[name]
	return ok
}

// escapeXML guards dynamic content against TwiML injection.
func escapeXML(unsafe string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(unsafe)
}

// CallTwiML renders the spoken script for an outbound call, including the
// DTMF gather prompt. companyName, when non-empty, personalizes the intro.
func CallTwiML(scriptName, companyName, responseURL string) string {
	sc, ok := voiceScripts[scriptName]
	if !ok {
		sc = voiceScripts[DefaultScript]
	}

	intro := sc.Intro
	if companyName != "" {
		intro = fmt.Sprintf("Grüezi, hie isch dr Bottie vo LeadFlow Pro für %s.", companyName)
	}
	fullText := escapeXML(strings.Join([]string{intro, sc.Hook, sc.Value, sc.CTA}, " "))

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="alice" language="de-CH">%s</Say>
  <Gather numDigits="1" action="%s" method="POST">
    <Say voice="alice" language="de-CH">Drücke 1 für Terminvereinbarung. Drücke 2 für mehr Infos. Drücke 3 für Auflege.</Say>
  </Gather>
  <Say voice="alice" language="de-CH">Adieu und schöne Tag no!</Say>
  <Hangup/>
</Response>`, fullText, escapeXML(responseURL))
}

// ResponseTwiML acknowledges the digits pressed during the gather prompt.
func ResponseTwiML(digits string) string {
	labels := map[string]string{
		"1": "Terminvereinbarung",
		"2": "Mehr Infos",
		"3": "Auflegen",
	}
	action, ok := labels[strings.TrimSpace(digits)]
	if !ok {
		action = "Unbekannt"
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="alice" language="de-CH">Vielen Dank. Sie händ %s gwählt. Es meldet sich demnächst öpper vo üsem Team. Adieu!</Say>
  <Hangup/>
</Response>`, escapeXML(action))
}

// HangupTwiML is the fallback response when request handling fails but the
// provider contract still requires a spoken reply.
func HangupTwiML() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="alice" language="de-CH">Es tuet üs leid, es isch en Fehler passiert. Adieu!</Say>
  <Hangup/>
</Response>`
}
