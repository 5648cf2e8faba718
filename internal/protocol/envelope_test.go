package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewAddsReservedKey(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		key     string
		want    string
	}{
		{"empty variant", GetRecords{}, "__GET_RECORDS__", "true"},
		{"field variant", EFBState{State: true}, "__EFB_STATE__", "true"},
		{"hello carries peer type", HelloWorld{Type: PeerEFB}, "__HELLO_WORLD__", `"EFB"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := New(tt.content)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if msg.Kind != tt.content.Kind() {
				t.Errorf("Kind = %q, want %q", msg.Kind, tt.content.Kind())
			}

			var fields map[string]json.RawMessage
			if err := json.Unmarshal(msg.Raw, &fields); err != nil {
				t.Fatalf("raw is not an object: %v", err)
			}
			if got := string(fields[tt.key]); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.key, got, tt.want)
			}
		})
	}
}

func TestParseIdentifiesVariant(t *testing.T) {
	env, err := Parse([]byte(`{"id":7,"content":{"__GET_FACILITIES__":true,"lat":45.5,"lon":-1.25}}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.ID != 7 {
		t.Errorf("ID = %d, want 7", env.ID)
	}
	if !env.Content.Is(KindGetFacilities) {
		t.Fatalf("Kind = %q", env.Content.Kind)
	}

	var gf GetFacilities
	if err := env.Content.Decode(&gf); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if gf.Lat != 45.5 || gf.Lon != -1.25 {
		t.Errorf("decoded %+v", gf)
	}

	var wrong EFBState
	if err := env.Content.Decode(&wrong); !errors.Is(err, ErrMalformed) {
		t.Errorf("decode into wrong variant: got %v, want ErrMalformed", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{"id":`, ErrMalformed},
		{"missing id", `{"content":{"__GET_RECORDS__":true}}`, ErrMalformed},
		{"missing content", `{"id":1}`, ErrMalformed},
		{"null content", `{"id":1,"content":null}`, ErrMalformed},
		{"no reserved key", `{"id":1,"content":{"state":true}}`, ErrUnknownMessage},
		{"unknown reserved key", `{"id":1,"content":{"__NOPE__":true}}`, ErrUnknownMessage},
		{"two reserved keys", `{"id":1,"content":{"__GET_RECORDS__":true,"__EFB_STATE__":true}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUninterpretedContentForwardedVerbatim(t *testing.T) {
	content := `{"__PLANE_POS__":true,"lat":1.5,"lon":2.5,"heading":270,"altitude":1200}`
	env, err := Parse([]byte(`{"id":0,"content":` + content + `}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	out, err := Encode(3, env.Content)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := `{"id":3,"content":` + content + `}`
	if string(out) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", out, want)
	}
}

func TestEncodeContent(t *testing.T) {
	out, err := EncodeContent(BroadcastID, ServerState{State: true})
	if err != nil {
		t.Fatalf("EncodeContent() error: %v", err)
	}

	env, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	var st ServerState
	if err := env.Content.Decode(&st); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if env.ID != BroadcastID || !st.State {
		t.Errorf("got id=%d state=%v", env.ID, st.State)
	}
}

func TestEncodeEmptyMessage(t *testing.T) {
	if _, err := Encode(1, Message{}); err == nil {
		t.Error("expected error encoding an empty message")
	}
}

func TestFuelCurveRoundTrip(t *testing.T) {
	in := FuelPresetCurve{
		Name: "real h125",
		Date: 42,
		Curve: []FuelCurve{{
			Thrust: 100,
			Points: []FuelPoint{{Alt: 0, Values: [][2]float64{{-40, 177}, {17, 189}}}},
		}},
	}
	data, err := EncodeContent(BroadcastID, in)
	if err != nil {
		t.Fatalf("EncodeContent() error: %v", err)
	}
	if !strings.Contains(string(data), `"__FUEL_CURVE__":true`) {
		t.Errorf("missing reserved key in %s", data)
	}

	env, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	var out FuelPresetCurve
	if err := env.Content.Decode(&out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.Name != in.Name || out.Date != in.Date || len(out.Curve) != 1 {
		t.Fatalf("decoded %+v", out)
	}
	if got := out.Curve[0].Points[0].Values[1]; got != [2]float64{17, 189} {
		t.Errorf("values[1] = %v", got)
	}
}

func TestKnown(t *testing.T) {
	for _, k := range []Kind{KindHelloWorld, KindDefaultFuelPreset, KindLatLon, KindGetDeviationPresets} {
		if !k.Known() {
			t.Errorf("%s should be known", k)
		}
	}
	if Kind("__HELLO__").Known() {
		t.Error("__HELLO__ should not be known")
	}
}
