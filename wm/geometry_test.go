package wm

import "testing"

func TestParseAlignedGeometry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AlignedGeometry
		wantErr bool
	}{
		{
			name:  "bottom right",
			input: "480x360-0-0",
			want:  AlignedGeometry{W: 480, H: 360, XOff: 0, YOff: 0, Alignment: BottomRight},
		},
		{
			name:  "bottom left",
			input: "400x300+200-100",
			want:  AlignedGeometry{W: 400, H: 300, XOff: 200, YOff: 100, Alignment: BottomLeft},
		},
		{
			name:  "top left",
			input: "1280x720+0+0",
			want:  AlignedGeometry{W: 1280, H: 720, XOff: 0, YOff: 0, Alignment: TopLeft},
		},
		{
			name:  "top right",
			input: "640x480-10+20",
			want:  AlignedGeometry{W: 640, H: 480, XOff: 10, YOff: 20, Alignment: TopRight},
		},
		{name: "empty string", input: "", wantErr: true},
		{name: "negative dimensions", input: "-100x-100-0-0", wantErr: true},
		{name: "missing offsets", input: "480x360", wantErr: true},
		{name: "trailing whitespace", input: "100x100-0-0 ", wantErr: true},
		{name: "leading whitespace", input: " 100x100-0-0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlignedGeometry(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlignedGeometry(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseAlignedGeometry(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAlignedGeometry_Resolve(t *testing.T) {
	screen := Size{W: 1920, H: 1080}

	tl, _ := ParseAlignedGeometry("100x100+0+0")
	if x, y := tl.Resolve(screen); x != 0 || y != 0 {
		t.Errorf("TopLeft resolve = (%d,%d), want (0,0)", x, y)
	}

	br, _ := ParseAlignedGeometry("100x100-0-0")
	x, y := br.Resolve(screen)
	if x != 1820 || y != 980 {
		t.Errorf("BottomRight resolve = (%d,%d), want (1820,980)", x, y)
	}
}

func TestParseAlignmentTag(t *testing.T) {
	for tag, want := range map[string]Alignment{"lt": TopLeft, "rt": TopRight, "rb": BottomRight, "lb": BottomLeft} {
		got, ok := ParseAlignmentTag(tag)
		if !ok || got != want {
			t.Errorf("ParseAlignmentTag(%q) = (%v, %v), want (%v, true)", tag, got, ok, want)
		}
	}
	if _, ok := ParseAlignmentTag("bogus"); ok {
		t.Error("ParseAlignmentTag(\"bogus\") ok = true, want false")
	}
}

func TestAlignedGeometry_RoundTrip(t *testing.T) {
	inputs := []string{"480x360-0-0", "400x300+200-100", "1280x720+0+0", "640x480-10+20"}
	for _, in := range inputs {
		parsed, err := ParseAlignedGeometry(in)
		if err != nil {
			t.Fatalf("ParseAlignedGeometry(%q) error = %v", in, err)
		}
		if parsed.String() != in {
			t.Errorf("String() round-trip = %q, want %q", parsed.String(), in)
		}
	}
}
