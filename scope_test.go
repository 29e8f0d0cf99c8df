package starmap

import "testing"

func TestParsePath(t *testing.T) {
	cases := map[string]Path{
		"":               nil,
		".":              nil,
		"editor":         {"editor"},
		"editor.jobs":    {"editor", "jobs"},
		" editor..jobs ": {"editor", "jobs"},
	}
	for in, want := range cases {
		if got := ParsePath(in); !got.Equal(want) {
			t.Fatalf("ParsePath(%q) = %v, want %v", in, got, want)
		}
	}
	if ParsePath("editor.jobs").String() != "editor.jobs" {
		t.Fatalf("expected dotted String")
	}
}

func TestPathHasPrefixIsSegmentWise(t *testing.T) {
	jobs := ParsePath(ScopeEditorJobs)
	editor := ParsePath(ScopeEditor)

	if !jobs.HasPrefix(editor) {
		t.Fatalf("editor.jobs should extend editor")
	}
	if editor.HasPrefix(jobs) {
		t.Fatalf("editor should not extend editor.jobs")
	}
	if ParsePath("editors").HasPrefix(editor) {
		t.Fatalf("prefix must match whole segments")
	}
	if !jobs.HasPrefix(nil) {
		t.Fatalf("every path extends the root")
	}
}

func TestMatchesBatch(t *testing.T) {
	batch := []Path{ParsePath(ScopeEditorJobs), ParsePath(ScopeSelection)}

	if !matchesBatch(nil, batch) {
		t.Fatalf("root scope sees every batch")
	}
	if !matchesBatch(ParsePath(ScopeEditor), batch) {
		t.Fatalf("editor scope should see editor.jobs changes")
	}
	if matchesBatch(ParsePath(ScopeMode), batch) {
		t.Fatalf("mode scope should not see this batch")
	}
	if matchesBatch(ParsePath(ScopeEditorJobs), []Path{ParsePath(ScopeEditor)}) {
		t.Fatalf("editor.jobs scope must not fire for a change at editor")
	}
	if matchesBatch(nil, nil) {
		t.Fatalf("empty batch matches nothing")
	}
}
