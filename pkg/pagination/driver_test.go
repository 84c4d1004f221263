package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ocitools/audit-export/internal/testutil"
	"github.com/ocitools/audit-export/pkg/executor"
	"github.com/ocitools/audit-export/pkg/jsonmerge"
)

func newDriver(t *testing.T, runner executor.Runner) *Driver {
	t.Helper()

	exec, err := executor.New(runner, executor.DefaultConfig())
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	return NewDriver(exec)
}

func dataIDs(t *testing.T, doc json.RawMessage) []string {
	t.Helper()

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	ids := make([]string, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestRunPaged_SinglePageVerbatim(t *testing.T) {
	runner := testutil.NewMockRunner()
	body := `{"data":[{"id":"a"}],"extra":"kept"}`
	runner.SetJSON("audit event list", body)

	got, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if err != nil {
		t.Fatalf("RunPaged: %v", err)
	}
	if string(got) != body {
		t.Errorf("single page result = %s, want verbatim response", got)
	}
}

func TestRunPaged_ThreePageChain(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("audit event list",
		`{"data":[{"id":"a"},{"id":"b"}],"opc-next-page":"T1"}`)
	runner.SetJSON("audit event list --page T1",
		`{"data":[{"id":"c"}],"opc-next-page":"T2"}`)
	runner.SetJSON("audit event list --page T2",
		`{"data":[{"id":"d"},{"id":"e"}]}`)

	got, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if err != nil {
		t.Fatalf("RunPaged: %v", err)
	}

	want := []string{"a", "b", "c", "d", "e"}
	if ids := dataIDs(t, got); !reflect.DeepEqual(ids, want) {
		t.Errorf("paged result ids = %v, want %v", ids, want)
	}

	if runner.CallCount() != 3 {
		t.Errorf("runner called %d times, want 3", runner.CallCount())
	}
}

func TestRunPaged_EmptyIntermediatePage(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("audit event list",
		`{"data":[],"opc-next-page":"T1"}`)
	runner.SetJSON("audit event list --page T1",
		`{"data":[{"id":"a"}]}`)

	got, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if err != nil {
		t.Fatalf("RunPaged: %v", err)
	}
	if ids := dataIDs(t, got); !reflect.DeepEqual(ids, []string{"a"}) {
		t.Errorf("result ids = %v, want [a]", ids)
	}
}

func TestRunPaged_SingleObjectDataRewrapped(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("audit event list",
		`{"data":{"id":"a"},"opc-next-page":"T1"}`)
	runner.SetJSON("audit event list --page T1",
		`{"data":[{"id":"b"}]}`)

	got, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if err != nil {
		t.Fatalf("RunPaged: %v", err)
	}
	if ids := dataIDs(t, got); !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("result ids = %v, want [a b]", ids)
	}
}

func TestRunPaged_ErrorAbortsChain(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("audit event list",
		`{"data":[{"id":"a"}],"opc-next-page":"T1"}`)
	runner.SetResponse("audit event list --page T1",
		testutil.MockResponse{Err: errors.New("exit status 1")})

	_, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if executor.ClassOf(err) != executor.ClassUpstream {
		t.Errorf("mid-chain failure classified as %q (%v), want upstream", executor.ClassOf(err), err)
	}
}

func TestRunPaged_TokenedPageWithoutData(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetJSON("audit event list", `{"opc-next-page":"T1"}`)

	_, err := newDriver(t, runner).RunPaged(context.Background(), []string{"audit", "event", "list"}, "")
	if !errors.Is(err, jsonmerge.ErrSchema) {
		t.Errorf("tokened page without data: got %v, want ErrSchema", err)
	}
}
