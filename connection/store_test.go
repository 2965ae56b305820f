// File: connection/store_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package connection

import (
	"testing"

	"github.com/momentics/nexuskit/api"
)

func TestStoreAddGetRemove(t *testing.T) {
	st := NewStore(4)
	s := New(api.NewTCPEndpoint("example.test", 1))
	st.Add(s)
	if got, ok := st.Get(s.ID()); !ok || got != s {
		t.Fatal("stored shell not found")
	}
	if st.Count() != 1 {
		t.Fatalf("count = %d", st.Count())
	}
	st.Remove(s.ID())
	if _, ok := st.Get(s.ID()); ok {
		t.Fatal("removed shell still present")
	}
}

func TestStoreCloseAll(t *testing.T) {
	st := NewStore(2)
	shells := make([]*Shell, 5)
	for i := range shells {
		ft := newFakeTransport(false)
		shells[i] = New(api.NewTCPEndpoint("example.test", i), WithDialer(&fakeDialer{t: ft}))
		if err := shells[i].Connect(); err != nil {
			t.Fatalf("connect: %v", err)
		}
		st.Add(shells[i])
	}
	st.CloseAll()
	if st.Count() != 0 {
		t.Fatalf("count = %d after CloseAll", st.Count())
	}
	for _, s := range shells {
		if s.State() != api.StateDisconnected {
			t.Fatalf("state = %v, want disconnected", s.State())
		}
	}
}
