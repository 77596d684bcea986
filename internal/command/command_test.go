package command

import (
	"sync"
	"testing"
)

func TestNewResponseExactJSON(t *testing.T) {
	resp := NewResponse(StatusOK, "Executed direct method: SetFanState")
	want := `{"result":"Executed direct method: SetFanState"}`
	if string(resp.Payload) != want {
		t.Errorf("payload:\ngot:  %s\nwant: %s", resp.Payload, want)
	}
	if resp.Status != 200 {
		t.Errorf("status: got %d", resp.Status)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register("Echo", func(req Request) Response {
		return Response{Status: StatusOK, Payload: req.Payload}
	})

	resp := r.Dispatch(Request{Method: "Echo", Payload: []byte("hi")})
	if resp.Status != StatusOK || string(resp.Payload) != "hi" {
		t.Errorf("got %d %s", resp.Status, resp.Payload)
	}
	if r.Methods() != 1 {
		t.Errorf("Methods: got %d, want 1", r.Methods())
	}
}

func TestRegistryUnknownMethod(t *testing.T) {
	r := NewRegistry()
	resp := r.Dispatch(Request{Method: "Reboot"})
	if resp.Status != StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.Status)
	}
	if string(resp.Payload) != `{"result":"Method not found"}` {
		t.Errorf("payload: got %s", resp.Payload)
	}
}

func TestRegistryRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register("Explode", func(Request) Response { panic("nope") })

	resp := r.Dispatch(Request{Method: "Explode"})
	if resp.Status != StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.Status)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Register("M", func(Request) Response { return NewResponse(StatusOK, "ok") })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Dispatch(Request{Method: "M"})
			}
		}()
	}
	wg.Wait()
}
