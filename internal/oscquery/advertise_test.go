package oscquery

import "testing"

func TestServicesWithHTTP(t *testing.T) {
	got := services(9001, 9001)
	if len(got) != 2 {
		t.Fatalf("got %d services, want 2", len(got))
	}
	if got[0].service != ServiceOSCQuery || got[0].port != 9001 {
		t.Errorf("first: got %+v", got[0])
	}
	if got[1].service != ServiceOSC || got[1].port != 9001 {
		t.Errorf("second: got %+v", got[1])
	}
}

func TestServicesWithoutHTTP(t *testing.T) {
	got := services(0, 12345)
	if len(got) != 1 {
		t.Fatalf("got %d services, want 1", len(got))
	}
	if got[0].service != ServiceOSC || got[0].port != 12345 {
		t.Errorf("got %+v, want %s on 12345", got[0], ServiceOSC)
	}
}
