package internal

import "testing"

func TestSHA256sum(t *testing.T) {
	for _, tt := range []struct {
		name, input, want string
	}{
		{
			name:  "empty",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:  "abc",
			input: "abc",
			want:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := SHA256sum(tt.input); got != tt.want {
				t.Errorf("SHA256sum(%q) = %s, want %s", tt.input, got, tt.want)
			}

			if got := SHA256sumBytes([]byte(tt.input)); got != tt.want {
				t.Errorf("SHA256sumBytes(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFastHashStable(t *testing.T) {
	a := FastHash("features/v1")
	b := FastHash("features/v1")
	c := FastHash("features/v2")

	if a != b {
		t.Errorf("FastHash is not deterministic: %s != %s", a, b)
	}

	if a == c {
		t.Errorf("FastHash collided on different inputs: %s", a)
	}
}

func BenchmarkFastHash(b *testing.B) {
	for b.Loop() {
		FastHash("version=1,sample_rate=16000,num_ceps=13")
	}
}

func BenchmarkSHA256sum(b *testing.B) {
	for b.Loop() {
		SHA256sum("version=1,sample_rate=16000,num_ceps=13")
	}
}
