package actions

import (
	"testing"
)

// TestResolveIndependentOperations checks a flat batch becomes ready
// tasks in submission order.
func TestResolveIndependentOperations(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: OpGenerateContent, AutoExecute: true, Payload: map[string]any{"section_name": "one"}},
		{Type: OpGenerateContent, AutoExecute: true, Payload: map[string]any{"section_name": "two"}},
	})

	if len(res.Ready) != 2 {
		t.Fatalf("Ready = %d, want 2", len(res.Ready))
	}
	if len(res.ForUI) != 0 {
		t.Fatalf("ForUI = %d, want 0", len(res.ForUI))
	}
	if res.Ready[0].Payload["section_name"] != "one" || res.Ready[1].Payload["section_name"] != "two" {
		t.Error("ready tasks lost submission order")
	}
	for _, task := range res.Ready {
		if task.ID == "" {
			t.Error("task id not assigned")
		}
		if task.Priority != "normal" {
			t.Errorf("default priority = %q, want normal", task.Priority)
		}
	}
}

// TestResolveNavigationInjectsSideValues checks a select_section
// operation completes immediately, goes back to the caller, and its
// target flows into dependent task payloads.
func TestResolveNavigationInjectsSideValues(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{
			Type:        OpGenerateContent,
			AutoExecute: true,
			DependsOn:   []string{OpSelectSection},
			Payload:     map[string]any{"prompt": "write it"},
		},
		{
			Type:    OpSelectSection,
			Payload: map[string]any{"section_id": "sec-7", "section_name": "Chapter 3"},
		},
	})

	if len(res.ForUI) != 1 || res.ForUI[0].Type != OpSelectSection {
		t.Fatalf("navigation should be returned to the caller, got ForUI=%v", res.ForUI)
	}
	if len(res.Ready) != 1 {
		t.Fatalf("Ready = %d, want 1", len(res.Ready))
	}

	task := res.Ready[0]
	if task.Payload["section_id"] != "sec-7" {
		t.Errorf("section_id not injected, payload = %v", task.Payload)
	}
	if task.Payload["section_name"] != "Chapter 3" {
		t.Errorf("section_name not injected, payload = %v", task.Payload)
	}
	if task.Payload["prompt"] != "write it" {
		t.Error("original payload lost during injection")
	}
}

// TestResolveInjectionNeverClobbers checks explicit payload values win
// over injected side values.
func TestResolveInjectionNeverClobbers(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: OpSelectSection, Payload: map[string]any{"section_id": "sec-1"}},
		{
			Type:        OpGenerateContent,
			AutoExecute: true,
			DependsOn:   []string{OpSelectSection},
			Payload:     map[string]any{"section_id": "sec-explicit"},
		},
	})

	if len(res.Ready) != 1 {
		t.Fatalf("Ready = %d, want 1", len(res.Ready))
	}
	if got := res.Ready[0].Payload["section_id"]; got != "sec-explicit" {
		t.Errorf("section_id = %v, explicit value must not be clobbered", got)
	}
}

// TestResolveInstanceEdges checks type-level dependencies become
// instance-level edges on the produced tasks.
func TestResolveInstanceEdges(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: OpGenerateStructure, AutoExecute: true},
		{Type: OpGenerateContent, AutoExecute: true, DependsOn: []string{OpGenerateStructure}},
	})

	if len(res.Ready) != 2 {
		t.Fatalf("Ready = %d, want 2", len(res.Ready))
	}

	var structureID string
	for _, task := range res.Ready {
		if task.Type == OpGenerateStructure {
			structureID = task.ID
		}
	}
	for _, task := range res.Ready {
		if task.Type != OpGenerateContent {
			continue
		}
		if len(task.DependsOn) != 1 || task.DependsOn[0] != structureID {
			t.Errorf("content task DependsOn = %v, want [%s]", task.DependsOn, structureID)
		}
	}
}

// TestResolveUserInputPassthrough checks confirmation-gated operations
// go straight back and never satisfy dependents.
func TestResolveUserInputPassthrough(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: "delete_section", RequiresUserInput: true, AutoExecute: true},
		{Type: OpGenerateContent, AutoExecute: true, DependsOn: []string{"delete_section"}},
	})

	if len(res.Ready) != 0 {
		t.Fatalf("Ready = %d, want 0: dependent must stall behind unconfirmed op", len(res.Ready))
	}
	if len(res.ForUI) != 2 {
		t.Fatalf("ForUI = %d, want 2 (the gated op and its stalled dependent)", len(res.ForUI))
	}
}

// TestResolveStall checks an unsatisfiable dependency defers the
// operation to the caller instead of looping.
func TestResolveStall(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: OpGenerateContent, AutoExecute: true, DependsOn: []string{"never_happens"}},
	})

	if len(res.Ready) != 0 {
		t.Fatalf("Ready = %d, want 0", len(res.Ready))
	}
	if len(res.ForUI) != 1 {
		t.Fatalf("ForUI = %d, want 1", len(res.ForUI))
	}
}

// TestResolveDeduplicates checks exact duplicates collapse to one task.
func TestResolveDeduplicates(t *testing.T) {
	op := Operation{
		Type:        OpGenerateContent,
		AutoExecute: true,
		Payload:     map[string]any{"section_name": "intro"},
	}

	s := NewSequencer()
	res := s.Resolve([]Operation{op, op})

	if len(res.Ready) != 1 {
		t.Errorf("Ready = %d, want 1 after dedup", len(res.Ready))
	}
}

// TestResolveManualOperation checks a resolvable non-auto operation is
// returned rather than scheduled.
func TestResolveManualOperation(t *testing.T) {
	s := NewSequencer()
	res := s.Resolve([]Operation{
		{Type: "export_document", AutoExecute: false},
	})

	if len(res.Ready) != 0 || len(res.ForUI) != 1 {
		t.Errorf("Ready=%d ForUI=%d, want 0/1", len(res.Ready), len(res.ForUI))
	}
}

// TestResolveTypeKeyedVsInstanceKeyed demonstrates the difference
// between the two dependency-tracking modes: with one producer and two
// dependents keyed on its type, type-keyed mode unblocks both while
// instance-keyed mode spends the completion on the first.
func TestResolveTypeKeyedVsInstanceKeyed(t *testing.T) {
	ops := []Operation{
		{Type: OpGenerateStructure, AutoExecute: true},
		{Type: OpGenerateContent, AutoExecute: true, DependsOn: []string{OpGenerateStructure},
			Payload: map[string]any{"section_name": "one"}},
		{Type: OpGenerateContent, AutoExecute: true, DependsOn: []string{OpGenerateStructure},
			Payload: map[string]any{"section_name": "two"}},
	}

	res := NewSequencer().Resolve(ops)
	if len(res.Ready) != 3 || len(res.ForUI) != 0 {
		t.Errorf("type-keyed: Ready=%d ForUI=%d, want 3/0", len(res.Ready), len(res.ForUI))
	}

	res = NewSequencer(InstanceKeyed()).Resolve(ops)
	if len(res.Ready) != 2 {
		t.Errorf("instance-keyed: Ready=%d, want 2 (producer plus one dependent)", len(res.Ready))
	}
	if len(res.ForUI) != 1 {
		t.Errorf("instance-keyed: ForUI=%d, want 1 (second dependent has no completion left)", len(res.ForUI))
	}
}
