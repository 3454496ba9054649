// Package twiml builds call-control documents for the telephony
// provider's voice interpreter. It intentionally avoids any provider
// SDK dependency.
//
// Every builder in this package is total: whatever the input, the
// result is a well-formed document the provider can execute. A
// malformed or empty response drops the live call, so on any
// unexpected input the builders degrade to a minimal greeting-only
// document instead of failing.
package twiml

import (
	"bytes"
	"encoding/xml"
)

// Voice personas accepted by the provider's <Say> verb.
const (
	VoiceAlice = "alice"
	VoiceMan   = "man"
	VoiceWoman = "woman"
)

const (
	DefaultVoice    = VoiceAlice
	DefaultLanguage = "en-US"
	DefaultGreeting = "Connecting your call..."
)

// fallback is returned when XML encoding itself fails. It never
// should, but the call must get *some* document back.
const fallback = xml.Header + `<Response><Say voice="alice">` + DefaultGreeting + `</Say></Response>`

// KnownVoice reports whether v is one of the supported personas.
func KnownVoice(v string) bool {
	return v == VoiceAlice || v == VoiceMan || v == VoiceWoman
}

// ============================================
// VERB STRUCTURES
// ============================================

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Say speaks text to the connected party.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Dial bridges the call to a number or a named conference.
type Dial struct {
	XMLName                 xml.Name    `xml:"Dial"`
	CallerID                string      `xml:"callerId,attr,omitempty"`
	Record                  string      `xml:"record,attr,omitempty"`
	RecordingStatusCallback string      `xml:"recordingStatusCallback,attr,omitempty"`
	Number                  string      `xml:"Number,omitempty"`
	Conference              *Conference `xml:"Conference,omitempty"`
}

// Conference joins the caller into a named conference room.
type Conference struct {
	XMLName                 xml.Name `xml:"Conference"`
	Record                  string   `xml:"record,attr,omitempty"`
	RecordingStatusCallback string   `xml:"recordingStatusCallback,attr,omitempty"`
	StartConferenceOnEnter  bool     `xml:"startConferenceOnEnter,attr"`
	EndConferenceOnExit     bool     `xml:"endConferenceOnExit,attr"`
	Name                    string   `xml:",chardata"`
}

// ============================================
// DOCUMENT BUILDERS
// ============================================

// CallParams describes the control flow for an outbound call leg:
// an optional spoken greeting, then a bridge to either a target
// number or a named conference, with optional recording.
type CallParams struct {
	Greeting string
	Voice    string
	Language string

	// Exactly one of Target/ConferenceName is expected. When both
	// are empty the document degrades to greeting-only.
	Target         string
	ConferenceName string

	CallerID          string
	Record            bool
	RecordingCallback string
}

// Call renders the control document for an outbound call leg.
func Call(p CallParams) string {
	p = normalize(p)

	verbs := []any{Say{Voice: p.Voice, Language: p.Language, Text: p.Greeting}}

	switch {
	case p.ConferenceName != "":
		verbs = append(verbs, Dial{
			CallerID: p.CallerID,
			Conference: &Conference{
				Record:                  recordAttr(p.Record),
				RecordingStatusCallback: recordingCallback(p),
				StartConferenceOnEnter:  true,
				EndConferenceOnExit:     true,
				Name:                    p.ConferenceName,
			},
		})
	case p.Target != "":
		verbs = append(verbs, Dial{
			CallerID:                p.CallerID,
			Record:                  recordAttr(p.Record),
			RecordingStatusCallback: recordingCallback(p),
			Number:                  p.Target,
		})
	}

	return render(verbs)
}

// Prompt renders a say-only document, used for hold prompts and as
// the generic answer to control requests we cannot correlate.
func Prompt(text, voice, language string) string {
	p := normalize(CallParams{Greeting: text, Voice: voice, Language: language})
	return render([]any{Say{Voice: p.Voice, Language: p.Language, Text: p.Greeting}})
}

// Empty renders a document with no verbs. The provider treats it as
// "nothing to do" and continues the call as-is.
func Empty() string {
	return render(nil)
}

func normalize(p CallParams) CallParams {
	if p.Greeting == "" {
		p.Greeting = DefaultGreeting
	}
	if !KnownVoice(p.Voice) {
		p.Voice = DefaultVoice
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	return p
}

func recordAttr(record bool) string {
	if record {
		return "record-from-answer"
	}
	return ""
}

func recordingCallback(p CallParams) string {
	if !p.Record {
		return ""
	}
	return p.RecordingCallback
}

func render(verbs []any) string {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(response{Verbs: verbs}); err != nil {
		return fallback
	}
	if err := enc.Flush(); err != nil {
		return fallback
	}
	return buf.String()
}
