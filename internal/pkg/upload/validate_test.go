package upload

import "testing"

func TestValidateModelFile(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		head     []byte
		want     string
		wantErr  bool
	}{
		{"ascii stl", "dragon.stl", []byte("solid dragon\nfacet normal 0 0 1"), "stl", false},
		{"binary stl", "dragon.STL", append(make([]byte, 80), 0x10, 0x00, 0x00, 0x00), "stl", false},
		{"3mf archive", "part.3mf", []byte("PK\x03\x04"), "3mf", false},
		{"obj text", "mesh.obj", []byte("v 0.0 0.0 0.0\nv 1.0 0.0 0.0\nf 1 2 3"), "obj", false},
		{"bad 3mf magic", "part.3mf", []byte("not a zip"), "", true},
		{"wrong extension", "malware.exe", []byte("MZ"), "", true},
		{"html payload", "page.stl", []byte("<!DOCTYPE html><html><body>"), "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateModelFile(tc.filename, tc.head)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got format %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("format = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateImageBySniff(t *testing.T) {
	pngHead := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	if _, err := ValidateImageBySniff("preview.png", pngHead); err != nil {
		t.Fatalf("expected png to pass: %v", err)
	}
	if _, err := ValidateImageBySniff("preview.svg", []byte("<svg></svg>")); err == nil {
		t.Fatalf("expected svg to be rejected")
	}
	if _, err := ValidateImageBySniff("preview.png", []byte("<html><body>")); err == nil {
		t.Fatalf("expected html content to be rejected")
	}
}
