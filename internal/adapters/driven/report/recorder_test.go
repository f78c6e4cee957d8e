//go:build unit

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
)

func passResult(id string) domain.AssertionResult {
	return domain.AssertionResult{CheckID: id, Outcome: domain.OutcomePass, Message: "ok"}
}

// TestRecorder_NestedInsertion verifies intermediate levels are created
// and the leaf carries description and assertions.
func TestRecorder_NestedInsertion(t *testing.T) {
	rec := NewRecorder()
	rec.Record([]string{"sp", "authn_request_strict", "issuer"}, "Issuer element", passResult("issuer"))

	report := rec.Report()

	sp, ok := report["sp"].(map[string]any)
	if !ok {
		t.Fatal("missing sp level")
	}
	strict, ok := sp["authn_request_strict"].(map[string]any)
	if !ok {
		t.Fatal("missing authn_request_strict level")
	}
	leaf, ok := strict["issuer"].(map[string]any)
	if !ok {
		t.Fatal("missing issuer leaf")
	}
	if leaf["description"] != "Issuer element" {
		t.Errorf("description = %v", leaf["description"])
	}
	assertions, ok := leaf["assertions"].([]domain.AssertionResult)
	if !ok || len(assertions) != 1 {
		t.Fatalf("assertions = %v", leaf["assertions"])
	}
}

// TestRecorder_SamePathAppends verifies assertions recorded under the
// same path accumulate in order.
func TestRecorder_SamePathAppends(t *testing.T) {
	rec := NewRecorder()
	path := []string{"sp", "metadata_strict", "AssertionConsumerService", "tls12_support"}
	rec.Record(path, "TLS", passResult("tls12_support"))
	rec.Record(path, "TLS", domain.AssertionResult{CheckID: "tls12_support", Outcome: domain.OutcomeFail})

	report := rec.Report()
	leaf := report["sp"].(map[string]any)["metadata_strict"].(map[string]any)["AssertionConsumerService"].(map[string]any)["tls12_support"].(map[string]any)

	assertions := leaf["assertions"].([]domain.AssertionResult)
	if len(assertions) != 2 {
		t.Fatalf("got %d assertions, want 2", len(assertions))
	}
	if assertions[0].Outcome != domain.OutcomePass || assertions[1].Outcome != domain.OutcomeFail {
		t.Error("assertions should keep recording order")
	}
}

// TestWrite_ProducesJSONFile verifies the report serializes as JSON to
// the requested directory, creating it if needed.
func TestWrite_ProducesJSONFile(t *testing.T) {
	rec := NewRecorder()
	rec.Record([]string{"sp", "metadata_strict", "entity_descriptor"}, "EntityDescriptor",
		domain.AssertionResult{CheckID: "entity_descriptor", Outcome: domain.OutcomePass, Message: "ok", Path: "sp.metadata_strict.entity_descriptor"})

	dir := filepath.Join(t.TempDir(), "out", "reports")
	if err := Write(dir, "sp-metadata-strict.json", rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "sp-metadata-strict.json"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if !strings.Contains(string(raw), `"result": "pass"`) {
		t.Errorf("serialized report missing assertion outcome:\n%s", raw)
	}
}
