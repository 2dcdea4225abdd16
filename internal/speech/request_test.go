package speech

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/hammamikhairi/vicvoix/internal/domain"
)

var frVoice = domain.VoiceCatalogEntry{ID: "fr-FR-Neural2-A", LocaleID: "fr-FR"}

func baseParams() domain.SynthesisParameters {
	return domain.SynthesisParameters{
		LocaleID:       "fr-FR",
		VoiceID:        frVoice.ID,
		SpeakingRate:   1.5,
		PitchSemitones: -2,
	}
}

func TestBuildLengthLimits(t *testing.T) {
	b := NewBuilder(10, 0)

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"empty", "", true},
		{"exactly max", strings.Repeat("a", 10), false},
		{"max plus one", strings.Repeat("a", 11), true},
		{"multibyte counts runes", strings.Repeat("é", 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.text, frVoice, baseParams())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildPlainText(t *testing.T) {
	b := NewBuilder(100, 24000)
	req, err := b.Build("Bonjour", frVoice, baseParams())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.InputMode != domain.InputPlainText || req.Payload != "Bonjour" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.AudioEncoding != "MP3" {
		t.Fatalf("expected MP3, got %s", req.AudioEncoding)
	}

	raw, err := encodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["input"]["text"] != "Bonjour" {
		t.Fatalf("expected text input, got %v", body["input"])
	}
	if _, ok := body["input"]["ssml"]; ok {
		t.Fatal("plain request must not carry ssml")
	}
	if body["voice"]["languageCode"] != "fr-FR" || body["voice"]["name"] != frVoice.ID {
		t.Fatalf("unexpected voice: %v", body["voice"])
	}
	if body["audioConfig"]["speakingRate"] != 1.5 || body["audioConfig"]["pitch"] != -2.0 {
		t.Fatalf("expected rate/pitch in audioConfig, got %v", body["audioConfig"])
	}
	if body["audioConfig"]["sampleRateHertz"] != 24000.0 {
		t.Fatalf("expected sample rate, got %v", body["audioConfig"])
	}
}

func TestBuildSSMLWithStyle(t *testing.T) {
	b := NewBuilder(100, 0)
	p := baseParams()
	p.StyleToken = "lively"

	req, err := b.Build(`Tom & "Jerry" <3 l'été`, frVoice, p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.InputMode != domain.InputSSML {
		t.Fatalf("expected SSML mode, got %s", req.InputMode)
	}
	want := `<speak><google:style name="lively"><prosody rate="1.50" pitch="-2.00st">` +
		`Tom &amp; &quot;Jerry&quot; &lt;3 l&apos;été</prosody></google:style></speak>`
	if req.Payload != want {
		t.Fatalf("ssml mismatch:\n got %s\nwant %s", req.Payload, want)
	}

	raw, err := encodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["input"]["ssml"] != want {
		t.Fatalf("expected ssml input, got %v", body["input"])
	}
	if _, ok := body["audioConfig"]["speakingRate"]; ok {
		t.Fatal("ssml request must not repeat speakingRate")
	}
	if _, ok := body["audioConfig"]["pitch"]; ok {
		t.Fatal("ssml request must not repeat pitch")
	}
}

func TestBuildRejectsBadStyleAndVoice(t *testing.T) {
	b := NewBuilder(100, 0)
	p := baseParams()
	p.StyleToken = `x" onload="`
	if _, err := b.Build("hi", frVoice, p); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad style, got %v", err)
	}
	if _, err := b.Build("hi", domain.VoiceCatalogEntry{}, baseParams()); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing voice, got %v", err)
	}
}

func TestBuildClampsParameters(t *testing.T) {
	b := NewBuilder(100, 0)
	p := baseParams()
	p.SpeakingRate = 9
	p.PitchSemitones = -99
	req, err := b.Build("hi", frVoice, p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.SpeakingRate != 4.0 || req.Pitch != -20.0 {
		t.Fatalf("expected clamped values, got rate=%v pitch=%v", req.SpeakingRate, req.Pitch)
	}
}

func TestEscapeXMLRoundTrip(t *testing.T) {
	inputs := []string{
		`plain`,
		`a & b`,
		`<tag attr="v">'q'</tag>`,
		`&amp; already escaped`,
		`mixed & < > " ' ünïcode`,
	}
	for _, in := range inputs {
		escaped := EscapeXML(in)
		for _, bad := range []string{"<", ">", `"`, "'"} {
			if strings.Contains(escaped, bad) {
				t.Fatalf("escaped %q still contains %q: %q", in, bad, escaped)
			}
		}

		var out struct {
			Text string `xml:",chardata"`
		}
		if err := xml.Unmarshal([]byte("<p>"+escaped+"</p>"), &out); err != nil {
			t.Fatalf("unescape %q: %v", escaped, err)
		}
		if out.Text != in {
			t.Fatalf("round trip mismatch: %q -> %q -> %q", in, escaped, out.Text)
		}
	}
}

func TestValidStyle(t *testing.T) {
	for _, s := range Styles {
		if !ValidStyle(s) {
			t.Errorf("built-in style %q rejected", s)
		}
	}
	for _, s := range []string{"a b", `x"y`, "<tag>"} {
		if ValidStyle(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}
