package starmap

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type moveJob struct {
	System string    `json:"system"`
	To     []float64 `json:"to"`
	Steps  int       `json:"steps"`
}

type campaignInfo struct {
	Name    string        `json:"name"`
	Turn    int           `json:"turn"`
	Started time.Time     `json:"started"`
	Tick    time.Duration `json:"tick"`
}

func TestDecodeJobPayload(t *testing.T) {
	c, _ := newTestContainer(t)
	job := c.AddEditorJob(EditorJob{
		OpType:  "move",
		Payload: map[string]any{"system": "sol", "to": []any{1, 2}, "steps": "3"},
	})

	got, err := DecodeJobPayload[moveJob](job)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	want := moveJob{System: "sol", To: []float64{1, 2}, Steps: 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	empty, err := DecodeJobPayload[moveJob](EditorJob{ID: "j0"})
	if err != nil || !reflect.DeepEqual(empty, moveJob{}) {
		t.Fatalf("expected zero payload, got %+v %v", empty, err)
	}

	_, err = DecodeJobPayload[moveJob](EditorJob{ID: "bad", Payload: map[string]any{"to": "far"}})
	if err == nil || !strings.Contains(err.Error(), "editor job bad") {
		t.Fatalf("expected decode error naming the job, got %v", err)
	}
}

func TestDecodeCampaign(t *testing.T) {
	c, _ := newTestContainer(t)
	c.SetCampaign(Campaign{"name": "rim", "turn": 7, "started": "2024-01-02T00:00:00Z", "tick": "1m"})

	got, err := DecodeCampaign[campaignInfo](c.State().Campaign)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	want := campaignInfo{
		Name:    "rim",
		Turn:    7,
		Started: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Tick:    time.Minute,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeJobPayloadOptions(t *testing.T) {
	job := EditorJob{ID: "j7", Payload: map[string]any{"target": "sol", "steps": "2"}}
	rename := func(ctx DecodeContext, payload map[string]any) (map[string]any, error) {
		payload["system"] = payload["target"]
		delete(payload, "target")
		return payload, nil
	}
	double := func(ctx DecodeContext, out *moveJob) error {
		out.Steps *= 2
		return nil
	}

	got, err := DecodeJobPayload[moveJob](job,
		DecodeWithPreHook[moveJob](rename),
		DecodeWithPostHook[moveJob](double),
		DecodeStrict[moveJob](),
	)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got.System != "sol" || got.Steps != 4 {
		t.Fatalf("expected hooks applied with weak typing kept, got %+v", got)
	}
	if _, ok := job.Payload["system"]; ok {
		t.Fatalf("pre-hook must not modify the job payload, got %v", job.Payload)
	}

	if _, err := DecodeJobPayload[moveJob](job, DecodeStrict[moveJob]()); err == nil {
		t.Fatalf("expected strict decoding to reject the unknown target key")
	}
}

func TestDecodeCampaignCustomDecoder(t *testing.T) {
	custom := func(ctx DecodeContext, campaign map[string]any) (campaignInfo, error) {
		name, _ := campaign["title"].(string)
		return campaignInfo{Name: ctx.Kind + ":" + name}, nil
	}
	got, err := DecodeCampaign[campaignInfo](Campaign{"title": "rim"}, DecodeWithCustomDecoder[campaignInfo](custom))
	if err != nil || got.Name != "campaign:rim" {
		t.Fatalf("expected custom decoder result, got %+v %v", got, err)
	}

	rejected := errors.New("no turn")
	_, err = DecodeCampaign[campaignInfo](Campaign{}, DecodeWithPostHook[campaignInfo](func(DecodeContext, *campaignInfo) error {
		return rejected
	}))
	if !errors.Is(err, rejected) {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}
