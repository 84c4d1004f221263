package export

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ocitools/audit-export/internal/testutil"
)

const tenancy = "ocid1.tenancy.oc1..root"

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func auditKey(window, compartment string) string {
	parts := strings.Split(window, "/")
	return "audit event list --start-time " + parts[0] + " --end-time " + parts[1] +
		" --compartment-id " + compartment + ` --query ` + AuditFilter
}

func ids(t *testing.T, doc []byte) []string {
	t.Helper()

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	out := make([]string, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.ID)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Error("New without runner should fail")
	}

	cfg := DefaultConfig()
	cfg.Start = day(2)
	cfg.End = day(1)
	if _, err := New(testutil.NewMockRunner(), cfg); err == nil {
		t.Error("New with inverted range should fail")
	}
}

func TestRun_AuditEventsAcrossWindowsAndCompartments(t *testing.T) {
	w1 := "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z"
	w2 := "2026-03-02T00:00:00Z/2026-03-03T00:00:00Z"

	runner := testutil.NewMockRunner()
	runner.SetJSON(auditKey(w1, "A"), `{"data":[{"id":"a1"}]}`)
	runner.SetJSON(auditKey(w1, "B"), `{"data":[{"id":"b1"}]}`)
	runner.SetJSON(auditKey(w2, "A"), `{"data":[{"id":"a2"},{"id":"a3"}]}`)
	runner.SetJSON(auditKey(w2, "B"), `{"data":[]}`)

	cfg := Config{
		Start:        day(1),
		End:          day(3),
		Compartments: []string{"A", "B"},
		Options:      Options[:1], // audit-events
	}

	engine, err := New(runner, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	doc, ok := results["audit_events.json"]
	if !ok {
		t.Fatalf("no audit_events.json in results: %v", keys(results))
	}
	want := []string{"a1", "b1", "a2", "a3"}
	if got := ids(t, doc); !reflect.DeepEqual(got, want) {
		t.Errorf("audit event ids = %v, want %v", got, want)
	}
}

func TestRun_DiscoveryFeedsFanOut(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("iam compartment list --compartment-id-in-subtree true --all",
		`{"data":[
			{"id":"c1","name":"prod","lifecycle-state":"ACTIVE","compartment-id":"`+tenancy+`"},
			{"id":"c2","name":"old","lifecycle-state":"DELETED","compartment-id":"`+tenancy+`"}
		]}`)
	runner.SetJSON("iam policy list --all --compartment-id c1", `{"data":[{"id":"p1"}]}`)
	runner.SetJSON("iam policy list --all --compartment-id "+tenancy, `{"data":[{"id":"p2"}]}`)

	cfg := Config{
		Start:   day(1),
		End:     day(1),
		Options: Options[4:5], // policies
	}

	engine, err := New(runner, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Deleted c2 must not be queried; ROOT must be.
	if got := ids(t, results["policies.json"]); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("policy ids = %v, want [p1 p2]", got)
	}
	for _, call := range runner.Calls {
		joined := strings.Join(call, " ")
		if strings.Contains(joined, "--compartment-id c2") {
			t.Errorf("deleted compartment queried: %s", joined)
		}
	}
}

func TestRun_FailedOptionDoesNotBlockOthers(t *testing.T) {
	runner := testutil.NewMockRunner()
	// users is left unscripted and fails; groups succeeds.
	runner.SetJSON("iam group list --all", `{"data":[{"id":"g1"}]}`)

	cfg := Config{
		Start:        day(1),
		End:          day(1),
		Compartments: []string{"A"},
		Options:      Options[2:4], // users, groups
	}

	engine, err := New(runner, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err == nil {
		t.Fatal("Run should report the failed option")
	}
	if !strings.Contains(err.Error(), "option users") {
		t.Errorf("error does not name the failed option: %v", err)
	}

	if _, ok := results["users.json"]; ok {
		t.Error("failed option produced a document")
	}
	if got := ids(t, results["groups.json"]); !reflect.DeepEqual(got, []string{"g1"}) {
		t.Errorf("groups ids = %v, want [g1]", got)
	}
}

func TestRun_RegionScopedOutputs(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("iam user list --all --region eu-frankfurt-1", `{"data":[{"id":"u1"}]}`)
	runner.SetJSON("iam user list --all --region us-ashburn-1", `{"data":[{"id":"u2"}]}`)

	cfg := Config{
		Start:        day(1),
		End:          day(1),
		Regions:      []string{"eu-frankfurt-1", "us-ashburn-1"},
		Compartments: []string{"A"},
		Options:      Options[2:3], // users
	}

	engine, err := New(runner, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := ids(t, results["eu-frankfurt-1/users.json"]); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Errorf("frankfurt users = %v", got)
	}
	if got := ids(t, results["us-ashburn-1/users.json"]); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Errorf("ashburn users = %v", got)
	}
}

func TestRun_EmptyCompartmentSetYieldsEmptyDocument(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("iam compartment list --compartment-id-in-subtree true --all", `{"data":[]}`)

	cfg := Config{
		Start:   day(1),
		End:     day(2),
		Options: Options[:1], // audit-events over zero compartments
	}

	engine, err := New(runner, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := string(results["audit_events.json"]); got != `{"data":[]}` {
		t.Errorf("empty export = %s, want {\"data\":[]}", got)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
