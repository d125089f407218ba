package service

import "testing"

func TestStampedeTracker(t *testing.T) {
	st := newStampedeTracker()

	if n := st.RecordMiss("k"); n != 1 {
		t.Errorf("first miss count = %d, want 1", n)
	}
	if n := st.RecordMiss("k"); n != 2 {
		t.Errorf("second concurrent miss count = %d, want 2", n)
	}
	if n := st.RecordMiss("other"); n != 1 {
		t.Errorf("unrelated key count = %d, want 1", n)
	}

	st.RecordDone("k")
	if n := st.RecordMiss("k"); n != 2 {
		t.Errorf("count after one done = %d, want 2", n)
	}

	st.RecordDone("k")
	st.RecordDone("k")
	if n := st.RecordMiss("k"); n != 1 {
		t.Errorf("count after all done = %d, want 1", n)
	}
}

func TestStampedeTracker_DoneWithoutMissIsNoop(t *testing.T) {
	st := newStampedeTracker()
	st.RecordDone("never-missed")
	if n := st.RecordMiss("never-missed"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
