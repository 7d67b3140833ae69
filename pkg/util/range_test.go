package util

import (
	"reflect"
	"testing"
)

func TestExpandVLANRange(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		want     []int
		warnings int
	}{
		{"single", "10", []int{10}, 0},
		{"list", "10,20,30", []int{10, 20, 30}, 0},
		{"list with range", "10,20-22,30", []int{10, 20, 21, 22, 30}, 0},
		{"overlap dedup", "10,10,9-11", []int{9, 10, 11}, 0},
		{"unsorted input sorted output", "30,10,20", []int{10, 20, 30}, 0},
		{"inverted range dropped", "15-12", nil, 1},
		{"inverted range keeps rest", "10,15-12,20", []int{10, 20}, 1},
		{"out of range dropped", "0,4095,10", []int{10}, 2},
		{"range clipped at boundary", "4093-4096", []int{4093, 4094}, 2},
		{"garbage dropped", "ten,20", []int{20}, 1},
		{"empty", "", nil, 0},
		{"whitespace tolerated", " 10 , 20 - 21 ", []int{10, 20, 21}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warns := ExpandVLANRange(tt.spec)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandVLANRange(%q) = %v, want %v", tt.spec, got, tt.want)
			}
			if len(warns) != tt.warnings {
				t.Errorf("ExpandVLANRange(%q) warnings = %v, want %d", tt.spec, warns, tt.warnings)
			}
		})
	}
}

func TestCompactRange(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   string
	}{
		{"empty", nil, ""},
		{"single", []int{5}, "5"},
		{"contiguous", []int{1, 2, 3}, "1-3"},
		{"mixed", []int{1, 2, 3, 5, 7, 8, 9}, "1-3,5,7-9"},
		{"unsorted with dupes", []int{9, 7, 8, 7, 5}, "5,7-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompactRange(tt.values); got != tt.want {
				t.Errorf("CompactRange(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestExpandCompactRoundTrip(t *testing.T) {
	spec := "10,20-22,30,4094"
	ids, warns := ExpandVLANRange(spec)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if got := CompactRange(ids); got != spec {
		t.Errorf("CompactRange(ExpandVLANRange(%q)) = %q", spec, got)
	}
}

func TestValidVLANID(t *testing.T) {
	for id, want := range map[int]bool{0: false, 1: true, 4094: true, 4095: false, -5: false} {
		if got := ValidVLANID(id); got != want {
			t.Errorf("ValidVLANID(%d) = %v, want %v", id, got, want)
		}
	}
}
