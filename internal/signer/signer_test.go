package signer

import "testing"

func TestSignRequestIsDeterministic(t *testing.T) {
	t.Parallel()

	s := New("supersecret")
	var a, b [HexLen]byte
	s.SignRequest(1700000000000, "K", 20000, []byte(`{"a":1}`), &a)
	s.SignRequest(1700000000000, "K", 20000, []byte(`{"a":1}`), &b)

	if a != b {
		t.Errorf("SignRequest is not deterministic: %x != %x", a, b)
	}
}

func TestSignRequestVariesWithInput(t *testing.T) {
	t.Parallel()

	s := New("supersecret")
	var a, b [HexLen]byte
	s.SignRequest(1700000000000, "K", 20000, []byte(`{"a":1}`), &a)
	s.SignRequest(1700000000001, "K", 20000, []byte(`{"a":1}`), &b)

	if a == b {
		t.Errorf("SignRequest produced identical tags for different timestamps")
	}
}

func TestSignRequestOutputIsHex(t *testing.T) {
	t.Parallel()

	s := New("supersecret")
	var out [HexLen]byte
	s.SignRequest(1700000000000, "K", 20000, []byte(`{"a":1}`), &out)

	for i, c := range out {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			t.Fatalf("out[%d] = %q, not a lowercase hex digit", i, c)
		}
	}
}

func TestSignWSAuthDiffersFromSignRequest(t *testing.T) {
	t.Parallel()

	s := New("supersecret")
	var ws, rest [HexLen]byte
	s.SignWSAuth(1700000000000, &ws)
	s.SignRequest(1700000000000, "", 0, nil, &rest)

	if ws == rest {
		t.Errorf("WS auth and REST signatures collided for overlapping inputs")
	}
}

func TestSignerKeyChangesOutput(t *testing.T) {
	t.Parallel()

	var a, b [HexLen]byte
	New("secret-one").SignWSAuth(1700000000000, &a)
	New("secret-two").SignWSAuth(1700000000000, &b)

	if a == b {
		t.Errorf("different secrets produced identical signatures")
	}
}
