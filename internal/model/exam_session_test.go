package model

import "testing"

func TestAnswerMapCloneIsIndependent(t *testing.T) {
	orig := AnswerMap{"q1": OptionA}
	cp := orig.Clone()
	cp["q2"] = OptionB

	if len(orig) != 1 {
		t.Fatalf("clone mutated original: %v", orig)
	}
	if !orig.Equal(AnswerMap{"q1": OptionA}) {
		t.Fatalf("Equal = false for identical maps")
	}
	if orig.Equal(cp) {
		t.Fatalf("Equal = true for different maps")
	}

	var nilMap AnswerMap
	if got := nilMap.Clone(); got == nil || len(got) != 0 {
		t.Fatalf("nil clone = %v, want empty non-nil map", got)
	}
}

func TestAttemptsConsume(t *testing.T) {
	tests := []struct {
		name     string
		in       Attempts
		want     Attempts
		wantLeft bool
	}{
		{name: "bounded", in: Attempts{Remaining: 2}, want: Attempts{Remaining: 1}, wantLeft: true},
		{name: "last", in: Attempts{Remaining: 1}, want: Attempts{Remaining: 0}, wantLeft: false},
		{name: "exhausted stays at zero", in: Attempts{Remaining: 0}, want: Attempts{Remaining: 0}, wantLeft: false},
		{name: "unlimited", in: Attempts{Unlimited: true}, want: Attempts{Unlimited: true}, wantLeft: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Consume()
			if got != tt.want {
				t.Fatalf("Consume() = %+v, want %+v", got, tt.want)
			}
			if got.Left() != tt.wantLeft {
				t.Fatalf("Left() = %t, want %t", got.Left(), tt.wantLeft)
			}
		})
	}
}

func TestLabelAt(t *testing.T) {
	if l, ok := LabelAt(0); !ok || l != OptionA {
		t.Fatalf("LabelAt(0) = (%q, %t)", l, ok)
	}
	if l, ok := LabelAt(3); !ok || l != OptionD {
		t.Fatalf("LabelAt(3) = (%q, %t)", l, ok)
	}
	if _, ok := LabelAt(4); ok {
		t.Fatalf("LabelAt(4) should be out of range")
	}
	if OptionLabel("E").Valid() {
		t.Fatalf("E should not be a valid label")
	}
}
